// Package telegram adapts the gotgproto/gotd MTProto client to the crawler's provider interface.
package telegram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"

	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/metrics"
	"github.com/blockedby/tg-warehouse/internal/models"
	"github.com/blockedby/tg-warehouse/internal/scraper"
)

// historyPageSize is the telegram api limit for a single history request.
const historyPageSize = 100

// APISource provides the raw api of an open session.
type APISource interface {
	API() (*tg.Client, error)
}

// Client implements scraper.Provider on top of a telegram session.
type Client struct {
	api          APISource
	rateLimiter  *RateLimiter
	fetchTimeout time.Duration
	downloader   *downloader.Downloader
	log          *logger.Logger
}

var _ scraper.Provider = (*Client)(nil)

// NewClient creates a new telegram client wrapper.
// fetchTimeout bounds every single api call; zero disables it.
func NewClient(api APISource, rateLimiter *RateLimiter, fetchTimeout time.Duration, log *logger.Logger) *Client {
	if rateLimiter == nil {
		rateLimiter = DefaultRateLimiter()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		api:          api,
		rateLimiter:  rateLimiter,
		fetchTimeout: fetchTimeout,
		downloader:   downloader.NewDownloader(),
		log:          log,
	}
}

// Resolve resolves a channel handle, with or without @ prefix.
func (c *Client) Resolve(ctx context.Context, handle string) (models.Channel, error) {
	username := models.ChannelName(handle)

	api, err := c.api.API()
	if err != nil {
		return models.Channel{}, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return models.Channel{}, err
	}

	c.log.Debug().Str("username", username).Msg("telegram: resolving channel username")
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	start := time.Now()
	resolved, err := api.ContactsResolveUsername(callCtx, &tg.ContactsResolveUsernameRequest{
		Username: username,
	})
	metrics.ObserveNetworkRequest("telegram", "resolve_username", start, err)
	if err != nil {
		return models.Channel{}, c.convertError(fmt.Sprintf("resolve username %s", username), err)
	}

	for _, chat := range resolved.Chats {
		if ch, ok := chat.(*tg.Channel); ok {
			return models.Channel{
				ID:         ch.ID,
				AccessHash: ch.AccessHash,
				Handle:     handle,
				Title:      ch.Title,
			}, nil
		}
	}

	return models.Channel{}, fmt.Errorf("%w: not a channel: %s", scraper.ErrChannelResolution, username)
}

// Iterate returns a lazy newest-first iterator over the channel history.
func (c *Client) Iterate(_ context.Context, ch models.Channel, limit int) (scraper.MessageIterator, error) {
	fetch := func(ctx context.Context, offsetID, n int) ([]models.Message, int, error) {
		return c.getHistory(ctx, ch, offsetID, n)
	}
	return newHistoryIterator(fetch, limit), nil
}

// DownloadMedia saves the photo of msg at dest.
func (c *Client) DownloadMedia(ctx context.Context, msg models.Message, dest string) error {
	if !msg.HasPhoto() {
		return fmt.Errorf("message %d has no photo", msg.ID)
	}
	loc, ok := msg.Media.Ref.(*tg.InputPhotoFileLocation)
	if !ok {
		return fmt.Errorf("message %d: unexpected photo reference %T", msg.ID, msg.Media.Ref)
	}

	api, err := c.api.API()
	if err != nil {
		return err
	}
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	start := time.Now()
	err = c.downloadTo(callCtx, api, loc, dest)
	metrics.ObserveNetworkRequest("telegram", "download_photo", start, err)
	if err != nil {
		return c.convertError(fmt.Sprintf("download photo %d", msg.ID), err)
	}
	return nil
}

// downloadTo streams the file into a temp file next to dest and renames it on
// success, so dest never holds a partial image.
func (c *Client) downloadTo(ctx context.Context, api *tg.Client, loc tg.InputFileLocationClass, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = c.downloader.Download(api, loc).Stream(ctx, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

// getHistory fetches one page. It returns the parsed messages and the id of the
// oldest raw message in the page, which is the offset of the next page.
func (c *Client) getHistory(ctx context.Context, ch models.Channel, offsetID int, limit int) ([]models.Message, int, error) {
	if limit > historyPageSize {
		limit = historyPageSize // telegram api limit
	}

	api, err := c.api.API()
	if err != nil {
		return nil, 0, err
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	c.log.Debug().Int64("channel_id", ch.ID).Int("offset_id", offsetID).Int("limit", limit).Msg("telegram: calling MessagesGetHistory API")
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	start := time.Now()
	history, err := api.MessagesGetHistory(callCtx, &tg.MessagesGetHistoryRequest{
		Peer: &tg.InputPeerChannel{
			ChannelID:  ch.ID,
			AccessHash: ch.AccessHash,
		},
		OffsetID: offsetID,
		Limit:    limit,
	})
	metrics.ObserveNetworkRequest("telegram", "get_history", start, err)
	if err != nil {
		return nil, 0, c.convertError("get history", err)
	}

	msgs, lastID := extractMessages(history)
	return msgs, lastID, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.fetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.fetchTimeout)
}

// convertError maps provider errors to the crawler's taxonomy.
func (c *Client) convertError(op string, err error) error {
	if seconds, ok := floodWaitSeconds(err); ok {
		c.log.Warn().Int("wait_seconds", seconds).Str("op", op).Msg("telegram: FLOOD_WAIT detected, updating rate limiter")
		c.rateLimiter.SetFloodWait(seconds)
		return fmt.Errorf("%s: %w", op, &scraper.FloodWaitError{Seconds: seconds})
	}
	if isResolutionError(err) {
		return fmt.Errorf("%w: %s: %v", scraper.ErrChannelResolution, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// parseFloodWait extracts seconds from a FLOOD_WAIT_X error string.
func parseFloodWait(err error) int {
	if err == nil {
		return 0
	}

	str := err.Error()
	if !strings.Contains(str, "FLOOD_WAIT_") {
		return 0
	}
	// e.g. "rpc error: code 420: FLOOD_WAIT_15"
	var seconds int
	parts := strings.Split(str, "FLOOD_WAIT_")
	if len(parts) > 1 {
		_, _ = fmt.Sscanf(strings.TrimSpace(parts[1]), "%d", &seconds)
	}
	return seconds
}
