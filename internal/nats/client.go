// Package nats provides a client for NATS JetStream pub/sub messaging.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Redelivery bounds for messages whose handler failed.
const (
	RedeliveryBase = 5 * time.Second
	RedeliveryMax  = 5 * time.Minute
)

// RedeliveryDelay doubles RedeliveryBase for every delivery after the first, up to RedeliveryMax.
func RedeliveryDelay(numDelivered uint64) time.Duration {
	d := RedeliveryBase
	for i := uint64(1); i < numDelivered; i++ {
		d *= 2
		if d >= RedeliveryMax {
			return RedeliveryMax
		}
	}
	return d
}

// Client wraps nats connection and jetstream context.
type Client struct {
	Conn *nats.Conn
	js   jetstream.JetStream
}

// Handler processes a message payload. A returned error naks the message with RedeliveryDelay.
type Handler func(ctx context.Context, data []byte) error

// New creates a new nats client with jetstream support.
func New(_ context.Context, natsURL string) (*Client, error) {
	conn, err := nats.Connect(natsURL,
		nats.Name("tg-warehouse"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Client{Conn: conn, js: js}, nil
}

// EnsureStream creates a stream if it doesn't exist.
func (c *Client) EnsureStream(ctx context.Context, name string, subjects []string) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: subjects,
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", name, err)
	}
	return nil
}

// Publish publishes a JSON encoded message to a subject.
func (c *Client) Publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = c.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	return nil
}

// Subscribe creates a durable consumer and consumes messages until ctx is done.
func (c *Client) Subscribe(ctx context.Context, stream, consumer, subject string, handler Handler) error {
	cons, err := c.js.CreateOrUpdateConsumer(ctx, stream, jetstream.ConsumerConfig{
		Durable:       consumer,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		if err := handler(ctx, msg.Data()); err != nil {
			// negative acknowledgement - redelivered after a growing delay
			var delivered uint64 = 1
			if meta, merr := msg.Metadata(); merr == nil {
				delivered = meta.NumDelivered
			}
			_ = msg.NakWithDelay(RedeliveryDelay(delivered))
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", subject, err)
	}

	<-ctx.Done()
	cc.Stop()
	return nil
}

// Close closes the nats connection.
func (c *Client) Close() {
	c.Conn.Close()
}
