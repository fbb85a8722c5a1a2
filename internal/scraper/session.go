package scraper

import (
	"time"

	"github.com/blockedby/tg-warehouse/internal/models"
)

// State is the flood-control state of a channel attempt.
type State string

// State constants.
const (
	StateFetching State = "fetching"
	StateBackoff  State = "backoff"
	StateFailed   State = "failed"
	StateDone     State = "done"
)

const (
	// MaxFloodRetries bounds flood-wait retries per channel.
	MaxFloodRetries = 3
	// FloodMargin is added to every provider-mandated wait.
	FloodMargin = 5 * time.Second
)

// ScrapeSession is the run-scoped state of one channel scrape.
// It is created when the channel starts and dropped when it ends.
type ScrapeSession struct {
	Handle       string
	State        State
	BatchCount   int
	SessionCount int
	Retries      int
	Attempts     int

	records []models.MessageRecord
}

func newScrapeSession(handle string) *ScrapeSession {
	return &ScrapeSession{Handle: handle, State: StateFetching}
}

// beginAttempt starts a fresh fetch from the newest message.
// Records and pacing counters of a previous attempt are discarded.
func (s *ScrapeSession) beginAttempt() {
	s.Attempts++
	s.State = StateFetching
	s.BatchCount = 0
	s.SessionCount = 0
	s.records = s.records[:0]
}

// onFloodWait applies a flood signal. It returns the backoff to sleep and
// false once the retry bound is exceeded, in which case the session is Failed.
func (s *ScrapeSession) onFloodWait(seconds int) (time.Duration, bool) {
	s.Retries++
	if s.Retries > MaxFloodRetries {
		s.State = StateFailed
		return 0, false
	}
	s.State = StateBackoff
	return time.Duration(seconds)*time.Second + FloodMargin, true
}
