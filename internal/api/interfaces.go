package api

import (
	"context"

	"github.com/blockedby/tg-warehouse/internal/repository"
)

// MessagesRepository defines the interface for message data access.
type MessagesRepository interface {
	ListChannels(ctx context.Context) ([]repository.ChannelStats, error)
	ChannelMessages(ctx context.Context, channel string, limit int) ([]repository.Message, error)
	SearchMessages(ctx context.Context, query string, limit int) ([]repository.Message, error)
}

// ReportsRepository defines the interface for enrichment analytics.
type ReportsRepository interface {
	VisualContent(ctx context.Context) ([]repository.VisualContent, error)
}

// StatsRepository defines the interface for stats data access.
type StatsRepository interface {
	GetStats(ctx context.Context) (*repository.WarehouseStats, error)
}
