package nats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew_Unreachable(t *testing.T) {
	client, err := New(context.Background(), "nats://127.0.0.1:1")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "connect to nats")
	assert.Nil(t, client)
}

func TestRedeliveryDelay(t *testing.T) {
	tests := []struct {
		delivered uint64
		want      time.Duration
	}{
		{0, 5 * time.Second},
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{6, 160 * time.Second},
		{7, 5 * time.Minute},
		{1000, 5 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RedeliveryDelay(tt.delivered), "delivery %d", tt.delivered)
	}
}
