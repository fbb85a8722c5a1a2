package repository

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-warehouse/internal/database"
	"github.com/blockedby/tg-warehouse/internal/migrator"
	"github.com/blockedby/tg-warehouse/migrations"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, "paracetamol", escapeLike("paracetamol"))
	assert.Equal(t, `50\%`, escapeLike("50%"))
	assert.Equal(t, `a\_b`, escapeLike("a_b"))
	assert.Equal(t, `c:\\tmp`, escapeLike(`c:\tmp`))
}

func setupWarehouse(t *testing.T) *database.DB {
	t.Helper()

	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("Skipping integration test; set INTEGRATION_TEST=1 to run")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	m, err := migrator.NewWithFS(migrations.FS)
	require.NoError(t, err)
	require.NoError(t, m.Up(ctx, dbURL))

	db, err := database.New(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Pool.Exec(ctx, "TRUNCATE raw.telegram_messages, raw.image_detections")
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO raw.telegram_messages
			(message_id, channel_name, channel_title, message_date, message_text, has_media, image_path, views, forwards, partition_date)
		VALUES
			(1, 'tikvahpharma', 'Tikvah Pharma', '2024-01-14T10:00:00Z', 'Paracetamol 500mg', false, NULL, 100, 1, '2024-01-14'),
			(2, 'tikvahpharma', 'Tikvah Pharma', '2024-01-15T10:00:00Z', 'new stock: 50% off', true, 'data/raw/images/tikvahpharma/2.jpg', 300, 2, '2024-01-15'),
			(7, 'lobelia4cosmetics', 'Lobelia', '2024-01-15T09:00:00Z', 'cream', true, 'data/raw/images/lobelia4cosmetics/7.jpg', 50, 0, '2024-01-15')
	`)
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO raw.image_detections
			(message_id, channel_name, image_path, detected_classes, confidence_score, image_category)
		VALUES
			(2, 'tikvahpharma', 'data/raw/images/tikvahpharma/2.jpg', '[39]', 0.8, 'product_display'),
			(7, 'lobelia4cosmetics', 'data/raw/images/lobelia4cosmetics/7.jpg', '[0, 39]', 0.6, 'promotional')
	`)
	require.NoError(t, err)

	return db
}

func TestMessagesRepository_Integration(t *testing.T) {
	db := setupWarehouse(t)
	ctx := context.Background()
	repo := NewMessagesRepository(db.Pool)

	channels, err := repo.ListChannels(ctx)
	require.NoError(t, err)
	require.Len(t, channels, 2)
	assert.Equal(t, "tikvahpharma", channels[0].ChannelName)
	assert.Equal(t, 2, channels[0].TotalPosts)
	assert.InDelta(t, 200.0, channels[0].AvgViews, 1e-9)
	assert.Equal(t, 1, channels[0].PostsWithImages)

	msgs, err := repo.ChannelMessages(ctx, "tikvahpharma", 1)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(2), msgs[0].MessageID)
	require.NotNil(t, msgs[0].ImagePath)

	found, err := repo.SearchMessages(ctx, "PARACETAMOL", 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(1), found[0].MessageID)

	found, err = repo.SearchMessages(ctx, "50%", 20)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(2), found[0].MessageID)
}

func TestReportsAndStats_Integration(t *testing.T) {
	db := setupWarehouse(t)
	ctx := context.Background()

	report, err := NewReportsRepository(db.Pool).VisualContent(ctx)
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, "lobelia4cosmetics", report[0].ChannelName)
	assert.Equal(t, "promotional", report[0].Category)
	assert.Equal(t, 1, report[0].Images)

	stats, err := NewStatsRepository(db.Pool).GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalMessages)
	assert.Equal(t, 2, stats.Channels)
	assert.Equal(t, 2, stats.PostsWithImages)
	assert.Equal(t, 2, stats.ImagesDetected)
	assert.NotNil(t, stats.LastLoadedAt)
}
