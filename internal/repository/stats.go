package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// WarehouseStats contains aggregated statistics for the warehouse.
type WarehouseStats struct {
	TotalMessages   int        `json:"total_messages"`
	Channels        int        `json:"channels"`
	MessagesToday   int        `json:"messages_today"`
	ImagesDetected  int        `json:"images_detected"`
	PostsWithImages int        `json:"posts_with_images"`
	LastLoadedAt    *time.Time `json:"last_loaded_at,omitempty"`
}

// StatsRepository provides access to statistics data in the database.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// GetStats retrieves aggregated statistics for the warehouse.
func (r *StatsRepository) GetStats(ctx context.Context) (*WarehouseStats, error) {
	stats := &WarehouseStats{}

	// Aggregated query for messages
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) as total,
			COUNT(DISTINCT channel_name) as channels,
			COUNT(CASE WHEN message_date >= CURRENT_DATE THEN 1 END) as today,
			COUNT(CASE WHEN image_path IS NOT NULL THEN 1 END) as with_images,
			MAX(loaded_at) as last_loaded
		FROM raw.telegram_messages
	`).Scan(&stats.TotalMessages, &stats.Channels, &stats.MessagesToday, &stats.PostsWithImages, &stats.LastLoadedAt)
	if err != nil {
		return nil, fmt.Errorf("get message stats: %w", err)
	}

	// Enriched images
	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM raw.image_detections
	`).Scan(&stats.ImagesDetected)
	if err != nil {
		return nil, fmt.Errorf("get detection stats: %w", err)
	}

	return stats, nil
}
