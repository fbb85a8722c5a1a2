package loader

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/models"
	"github.com/blockedby/tg-warehouse/internal/storage"
)

var messageColumns = []string{
	"message_id", "channel_name", "channel_title", "message_date", "message_text",
	"has_media", "image_path", "views", "forwards", "partition_date",
}

var detectionColumns = []string{
	"message_id", "channel_name", "image_path", "detected_classes", "confidence_score", "image_category",
}

// TxBeginner starts transactions (pgxpool.Pool, pgx.Conn).
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Stats summarizes a load.
type Stats struct {
	Messages   int64
	Detections int64
}

// Loader replaces the raw tables with the current partition tree.
type Loader struct {
	db  TxBeginner
	log *logger.Logger
}

// New creates a loader.
func New(db TxBeginner, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{db: db, log: log}
}

// Load reads base and reloads raw.telegram_messages and raw.image_detections in one transaction.
func (l *Loader) Load(ctx context.Context, base string) (*Stats, error) {
	rows, err := ReadPartitions(base, l.log)
	if err != nil {
		return nil, err
	}

	detections, err := ReadDetections(storage.DetectionsPath(base), l.log)
	skipDetections := false
	if err != nil {
		if !errors.Is(err, ErrNoDetections) {
			return nil, fmt.Errorf("read detections: %w", err)
		}
		l.log.Warn().Str("path", storage.DetectionsPath(base)).Msg("detections file not found, skipping")
		skipDetections = true
	}

	if len(rows) == 0 {
		l.log.Warn().Str("base", base).Msg("no messages found to load")
	}

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stats := &Stats{}

	if _, err := tx.Exec(ctx, "TRUNCATE raw.telegram_messages"); err != nil {
		return nil, fmt.Errorf("truncate messages: %w", err)
	}
	stats.Messages, err = tx.CopyFrom(ctx,
		pgx.Identifier{"raw", "telegram_messages"},
		messageColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return messageValues(rows[i]), nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("copy messages: %w", err)
	}

	if !skipDetections {
		if _, err := tx.Exec(ctx, "TRUNCATE raw.image_detections"); err != nil {
			return nil, fmt.Errorf("truncate detections: %w", err)
		}
		stats.Detections, err = tx.CopyFrom(ctx,
			pgx.Identifier{"raw", "image_detections"},
			detectionColumns,
			pgx.CopyFromSlice(len(detections), func(i int) ([]any, error) {
				return detectionValues(detections[i])
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("copy detections: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	l.log.Info().
		Int64("messages", stats.Messages).
		Int64("detections", stats.Detections).
		Msg("warehouse load complete")
	return stats, nil
}

func messageValues(r MessageRow) []any {
	return []any{
		int64(r.MessageID),
		r.ChannelName,
		r.ChannelTitle,
		r.ParsedDate(),
		r.MessageText,
		r.HasMedia,
		nullable(r.ImagePath),
		r.Views,
		r.Forwards,
		partitionDate(r.PartitionDate),
	}
}

func detectionValues(d models.ImageResult) ([]any, error) {
	id, err := strconv.ParseInt(d.MessageID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("detection message id %q: %w", d.MessageID, err)
	}
	return []any{
		id,
		d.ChannelName,
		d.ImagePath,
		models.FormatClasses(d.DetectedClasses),
		d.ConfidenceScore,
		string(d.Category),
	}, nil
}

func partitionDate(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}
	return &t
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
