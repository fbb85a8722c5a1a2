// Package publisher announces completed scrape runs on NATS JetStream.
package publisher

import (
	"context"
	"fmt"

	"github.com/blockedby/tg-warehouse/internal/scraper"
)

// Stream and subject carrying run events.
const (
	StreamScrapes          = "SCRAPES"
	SubjectScrapeCompleted = "scrape.completed"
)

// NATSClient interface to allow mocking
type NATSClient interface {
	Publish(ctx context.Context, subject string, data any) error
}

// NATSPublisher implements scraper.EventPublisher
type NATSPublisher struct {
	js NATSClient
}

// NewNATSPublisher creates a new publisher
func NewNATSPublisher(js NATSClient) *NATSPublisher {
	return &NATSPublisher{js: js}
}

// PublishRunCompleted publishes a run completed event
func (p *NATSPublisher) PublishRunCompleted(ctx context.Context, event scraper.RunCompletedEvent) error {
	if err := p.js.Publish(ctx, SubjectScrapeCompleted, event); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}
