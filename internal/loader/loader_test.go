package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-warehouse/internal/database"
	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/migrator"
	"github.com/blockedby/tg-warehouse/internal/models"
	"github.com/blockedby/tg-warehouse/internal/storage"
	"github.com/blockedby/tg-warehouse/migrations"
)

func writePartition(t *testing.T, base, date, channel string, recs ...models.MessageRecord) {
	t.Helper()
	require.NoError(t, storage.NewWriter(base).WriteChannelMessages(date, channel, recs))
}

func TestReadPartitions(t *testing.T) {
	base := t.TempDir()
	writePartition(t, base, "2024-01-14", "tikvahpharma", models.MessageRecord{MessageID: 1, ChannelName: "tikvahpharma"})
	writePartition(t, base, "2024-01-15", "tikvahpharma",
		models.MessageRecord{MessageID: 3, ChannelName: "tikvahpharma", MessageDate: "2024-01-15T10:00:00Z"},
		models.MessageRecord{MessageID: 2, ChannelName: "tikvahpharma"},
	)

	dir := filepath.Join(base, "raw", "telegram_messages", "2024-01-15")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "single.json"), []byte(`{"message_id": 9, "channel_name": "single"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`[{`), 0644))

	misc := filepath.Join(base, "raw", "telegram_messages", "misc")
	require.NoError(t, os.MkdirAll(misc, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(misc, "x.json"), []byte(`[]`), 0644))

	rows, err := ReadPartitions(base, logger.Nop())
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, "2024-01-14", rows[0].PartitionDate)
	assert.Equal(t, 1, rows[0].MessageID)
	assert.Equal(t, 9, rows[1].MessageID)
	assert.Equal(t, 3, rows[2].MessageID)
	require.NotNil(t, rows[2].ParsedDate())
	assert.Equal(t, 2024, rows[2].ParsedDate().Year())
	assert.Nil(t, rows[3].ParsedDate())
}

func TestReadPartitions_Empty(t *testing.T) {
	rows, err := ReadPartitions(t.TempDir(), logger.Nop())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadDetections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yolo_results.csv")
	content := "message_id,channel_name,image_path,detected_classes,confidence_score,image_category\n" +
		"42,lobelia4cosmetics,data/raw/images/lobelia4cosmetics/42.jpg,\"[0, 39]\",0.87,promotional\n" +
		"43,lobelia4cosmetics,data/raw/images/lobelia4cosmetics/43.jpg,[],0,other\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := ReadDetections(path, logger.Nop())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "42", got[0].MessageID)
	assert.Equal(t, []int{0, 39}, got[0].DetectedClasses)
	assert.InDelta(t, 0.87, got[0].ConfidenceScore, 1e-9)
	assert.Equal(t, models.CategoryPromotional, got[0].Category)
	assert.Nil(t, got[1].DetectedClasses)
}

func TestReadDetections_Missing(t *testing.T) {
	_, err := ReadDetections(filepath.Join(t.TempDir(), "nope.csv"), nil)
	assert.ErrorIs(t, err, ErrNoDetections)
}

func TestReadDetections_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yolo_results.csv")
	require.NoError(t, os.WriteFile(path, []byte("message_id,channel_name\n1,a\n"), 0644))

	_, err := ReadDetections(path, nil)
	assert.Error(t, err)
}

func TestReadDetections_SkipsInvalidMessageID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yolo_results.csv")
	content := "message_id,channel_name,image_path,detected_classes,confidence_score,image_category\n" +
		"42,lobelia4cosmetics,data/raw/images/lobelia4cosmetics/42.jpg,[0],0.9,lifestyle\n" +
		"cover,lobelia4cosmetics,data/raw/images/lobelia4cosmetics/cover.jpg,[],0,other\n" +
		"43,lobelia4cosmetics,data/raw/images/lobelia4cosmetics/43.jpg,[41],0.5,product_display\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	got, err := ReadDetections(path, logger.Nop())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "42", got[0].MessageID)
	assert.Equal(t, "43", got[1].MessageID)

	for _, d := range got {
		_, err := detectionValues(d)
		assert.NoError(t, err)
	}
}

func TestDetectionValues_InvalidID(t *testing.T) {
	_, err := detectionValues(models.ImageResult{MessageID: "abc"})
	assert.Error(t, err)
}

func TestLoader_Load_Integration(t *testing.T) {
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
	defer db.Close()

	base := t.TempDir()
	writePartition(t, base, "2024-01-15", "tikvahpharma",
		models.MessageRecord{MessageID: 1, ChannelName: "tikvahpharma", MessageText: "ቅናሽ", MessageDate: "2024-01-15T10:00:00Z"},
		models.MessageRecord{MessageID: 2, ChannelName: "tikvahpharma"},
	)

	l := New(db.Pool, logger.Nop())

	// twice: replace semantics
	_, err = l.Load(ctx, base)
	require.NoError(t, err)
	stats, err := l.Load(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Messages)

	var count int
	require.NoError(t, db.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM raw.telegram_messages").Scan(&count))
	assert.Equal(t, 2, count)
}
