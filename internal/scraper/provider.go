// Package scraper crawls telegram channels with stealth pacing and flood-wait handling.
package scraper

import (
	"context"

	"github.com/blockedby/tg-warehouse/internal/models"
)

// Provider is the messaging backend the crawler depends on.
type Provider interface {
	// Resolve returns the channel entity for a handle.
	// Invalid, private or deleted handles fail with ErrChannelResolution.
	Resolve(ctx context.Context, handle string) (models.Channel, error)

	// Iterate returns newest-first messages of ch, at most limit of them.
	Iterate(ctx context.Context, ch models.Channel, limit int) (MessageIterator, error)

	// DownloadMedia saves the photo attached to msg at dest.
	DownloadMedia(ctx context.Context, msg models.Message, dest string) error
}

// MessageIterator is a lazy, finite, non-restartable message sequence.
// Next returns ok=false once the sequence is exhausted.
type MessageIterator interface {
	Next(ctx context.Context) (msg models.Message, ok bool, err error)
}

// SliceIterator iterates over an in-memory slice.
type SliceIterator struct {
	msgs []models.Message
	pos  int
}

// NewSliceIterator returns an iterator over msgs truncated to limit.
// limit <= 0 means no limit.
func NewSliceIterator(msgs []models.Message, limit int) *SliceIterator {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return &SliceIterator{msgs: msgs}
}

// Next implements MessageIterator.
func (it *SliceIterator) Next(ctx context.Context) (models.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, false, err
	}
	if it.pos >= len(it.msgs) {
		return models.Message{}, false, nil
	}
	msg := it.msgs[it.pos]
	it.pos++
	return msg, true, nil
}
