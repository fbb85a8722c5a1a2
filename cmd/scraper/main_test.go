package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-warehouse/internal/config"
	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/models"
	"github.com/blockedby/tg-warehouse/internal/scraper"
	"github.com/blockedby/tg-warehouse/internal/storage"
)

type stubProvider struct {
	msgs []models.Message
}

func (p *stubProvider) Resolve(_ context.Context, handle string) (models.Channel, error) {
	return models.Channel{Handle: handle, Title: "Title " + models.ChannelName(handle)}, nil
}

func (p *stubProvider) Iterate(_ context.Context, _ models.Channel, limit int) (scraper.MessageIterator, error) {
	return scraper.NewSliceIterator(p.msgs, limit), nil
}

func (p *stubProvider) DownloadMedia(context.Context, models.Message, string) error {
	return nil
}

type instantClock struct {
	now time.Time
}

func (c instantClock) Now() time.Time { return c.now }

func (c instantClock) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

var runDate = time.Date(2024, 1, 15, 12, 0, 0, 0, time.Local)

func setEnv(t *testing.T, apiID, apiHash string) {
	t.Helper()
	t.Setenv("TG_API_ID", apiID)
	t.Setenv("TG_API_HASH", apiHash)
	t.Setenv("TG_CHANNELS", "@tikvahpharma,@lobelia4cosmetics")
	t.Setenv("CHANNELS_FILE", "")
	t.Setenv("NATS_URL", "")
	t.Setenv("METRICS_ADDR", "")
	t.Setenv("LOG_FILE", filepath.Join(t.TempDir(), "scrape.log"))
}

func testDeps(factory providerFactory) deps {
	return deps{
		newProvider: factory,
		clock:       instantClock{now: runDate},
		now:         func() time.Time { return runDate },
		stderr:      &bytes.Buffer{},
	}
}

func TestRun_MissingCredentials(t *testing.T) {
	setEnv(t, "", "")
	base := t.TempDir()

	calls := 0
	factory := func(context.Context, *config.Config, *logger.Logger) (scraper.Provider, func(), error) {
		calls++
		return &stubProvider{}, func() {}, nil
	}

	code := run(context.Background(), []string{"--path", base}, testDeps(factory))

	assert.Equal(t, 1, code)
	assert.Zero(t, calls, "no telegram session without credentials")

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_WritesPartitionsAndManifest(t *testing.T) {
	setEnv(t, "12345", "hash")
	base := t.TempDir()

	msgs := []models.Message{
		{ID: 3, Text: "ቅናሽ", Date: runDate},
		{ID: 2, Text: "second", Date: runDate},
		{ID: 1, Text: "third", Date: runDate},
	}
	released := false
	factory := func(context.Context, *config.Config, *logger.Logger) (scraper.Provider, func(), error) {
		return &stubProvider{msgs: msgs}, func() { released = true }, nil
	}

	code := run(context.Background(), []string{"--path", base, "--limit", "2"}, testDeps(factory))
	require.Equal(t, 0, code)
	assert.True(t, released)

	m, err := storage.ReadManifest(base, "2024-01-15")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tikvahpharma": 2, "lobelia4cosmetics": 2}, m.ChannelsScraped)

	_, err = os.Stat(storage.NewWriter(base).MessagesPath("2024-01-15", "tikvahpharma"))
	assert.NoError(t, err)
}

func TestRun_BadFlag(t *testing.T) {
	setEnv(t, "12345", "hash")
	code := run(context.Background(), []string{"--nope"}, testDeps(nil))
	assert.Equal(t, 2, code)
}
