package telegram

import (
	"context"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/blockedby/tg-warehouse/internal/models"
)

// rpc error types meaning the handle is invalid, private or gone
var resolutionErrors = []string{
	"USERNAME_NOT_OCCUPIED",
	"USERNAME_INVALID",
	"CHANNEL_PRIVATE",
	"CHANNEL_INVALID",
	"CHANNEL_PUBLIC_GROUP_NA",
}

func isResolutionError(err error) bool {
	return tgerr.Is(err, resolutionErrors...)
}

func floodWaitSeconds(err error) (int, bool) {
	if d, ok := tgerr.AsFloodWait(err); ok {
		return int(d / time.Second), true
	}
	if s := parseFloodWait(err); s > 0 {
		return s, true
	}
	return 0, false
}

// extractMessages converts a history response. lastID is the id of the oldest
// raw message in the page, service messages included.
func extractMessages(messagesClass tg.MessagesMessagesClass) (msgs []models.Message, lastID int) {
	var raw []tg.MessageClass

	switch h := messagesClass.(type) {
	case *tg.MessagesChannelMessages:
		raw = h.Messages
	case *tg.MessagesMessagesSlice:
		raw = h.Messages
	case *tg.MessagesMessages:
		raw = h.Messages
	}

	for _, m := range raw {
		lastID = m.GetID()
		if msg, ok := parseMessage(m); ok {
			msgs = append(msgs, msg)
		}
	}
	return msgs, lastID
}

// parseMessage converts a single telegram message; service messages are skipped.
func parseMessage(msg tg.MessageClass) (models.Message, bool) {
	m, ok := msg.(*tg.Message)
	if !ok {
		return models.Message{}, false
	}

	return models.Message{
		ID:       m.ID,
		Text:     m.Message,
		Date:     time.Unix(int64(m.Date), 0).UTC(),
		Views:    m.Views,
		Forwards: m.Forwards,
		Media:    parseMedia(m.Media),
	}, true
}

func parseMedia(media tg.MessageMediaClass) *models.Media {
	switch md := media.(type) {
	case nil, *tg.MessageMediaEmpty:
		return nil
	case *tg.MessageMediaPhoto:
		photo, ok := md.Photo.(*tg.Photo)
		if !ok {
			return &models.Media{Kind: models.MediaOther}
		}
		return &models.Media{
			Kind: models.MediaPhoto,
			Ref: &tg.InputPhotoFileLocation{
				ID:            photo.ID,
				AccessHash:    photo.AccessHash,
				FileReference: photo.FileReference,
				ThumbSize:     largestSize(photo.Sizes),
			},
		}
	case *tg.MessageMediaDocument:
		return &models.Media{Kind: models.MediaDocument}
	default:
		return &models.Media{Kind: models.MediaOther}
	}
}

// largestSize returns the type of the biggest downloadable photo size.
func largestSize(sizes []tg.PhotoSizeClass) string {
	best, bestBytes := "x", -1
	for _, s := range sizes {
		switch sz := s.(type) {
		case *tg.PhotoSize:
			if sz.Size > bestBytes {
				best, bestBytes = sz.Type, sz.Size
			}
		case *tg.PhotoSizeProgressive:
			if n := len(sz.Sizes); n > 0 && sz.Sizes[n-1] > bestBytes {
				best, bestBytes = sz.Type, sz.Sizes[n-1]
			}
		}
	}
	return best
}

type pageFunc func(ctx context.Context, offsetID, limit int) ([]models.Message, int, error)

// historyIterator pages through history newest-first.
type historyIterator struct {
	fetch    pageFunc
	limit    int
	buf      []models.Message
	offsetID int
	fetched  int
	done     bool
}

func newHistoryIterator(fetch pageFunc, limit int) *historyIterator {
	return &historyIterator{fetch: fetch, limit: limit}
}

// Next implements scraper.MessageIterator.
func (it *historyIterator) Next(ctx context.Context) (models.Message, bool, error) {
	if it.limit > 0 && it.fetched >= it.limit {
		return models.Message{}, false, nil
	}

	for len(it.buf) == 0 {
		if it.done {
			return models.Message{}, false, nil
		}

		n := historyPageSize
		if it.limit > 0 && it.limit-it.fetched < n {
			n = it.limit - it.fetched
		}

		page, lastID, err := it.fetch(ctx, it.offsetID, n)
		if err != nil {
			return models.Message{}, false, err
		}
		if lastID == 0 {
			it.done = true
			return models.Message{}, false, nil
		}
		it.offsetID = lastID
		it.buf = page
	}

	msg := it.buf[0]
	it.buf = it.buf[1:]
	it.fetched++
	return msg, true, nil
}
