package scraper

import (
	"errors"
	"fmt"
)

// errors
var (
	ErrChannelResolution = errors.New("channel resolution failed")
	ErrFloodRetries      = errors.New("flood wait retries exhausted")
)

// FloodWaitError is the provider's request to slow down for Seconds.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait %ds", e.Seconds)
}

// TransientFetchError wraps any other failure while fetching a channel.
type TransientFetchError struct {
	Channel string
	Err     error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Channel, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// AsFloodWait extracts a FloodWaitError from err.
func AsFloodWait(err error) (*FloodWaitError, bool) {
	var fw *FloodWaitError
	if errors.As(err, &fw) {
		return fw, true
	}
	return nil, false
}
