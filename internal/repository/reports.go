package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// VisualContent counts the images of one category in a channel.
type VisualContent struct {
	ChannelName   string
	Category      string
	Images        int
	AvgConfidence float64
}

// ReportsRepository provides analytics over the enrichment results
type ReportsRepository struct {
	pool *pgxpool.Pool
}

// NewReportsRepository creates a new ReportsRepository.
func NewReportsRepository(pool *pgxpool.Pool) *ReportsRepository {
	return &ReportsRepository{pool: pool}
}

// VisualContent returns image counts per channel and category.
func (r *ReportsRepository) VisualContent(ctx context.Context) ([]VisualContent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT channel_name,
		       image_category,
		       COUNT(*),
		       COALESCE(AVG(confidence_score), 0)::float8
		FROM raw.image_detections
		GROUP BY channel_name, image_category
		ORDER BY channel_name, COUNT(*) DESC, image_category
	`)
	if err != nil {
		return nil, fmt.Errorf("visual content report: %w", err)
	}
	defer rows.Close()

	var out []VisualContent
	for rows.Next() {
		var v VisualContent
		if err := rows.Scan(&v.ChannelName, &v.Category, &v.Images, &v.AvgConfidence); err != nil {
			return nil, fmt.Errorf("scan visual content: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
