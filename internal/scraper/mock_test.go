package scraper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/blockedby/tg-warehouse/internal/models"
)

// attempt scripts one Iterate call: msgs are yielded, then err (if any) is returned.
type attempt struct {
	msgs []models.Message
	err  error
}

type mockChannel struct {
	resolveErr error
	attempts   []attempt
}

// MockProvider is a scripted Provider.
type MockProvider struct {
	mu           sync.Mutex
	channels     map[string]*mockChannel
	ResolveCalls map[string]int
	IterateCalls map[string]int
	Downloads    []string
	DownloadErr  error
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		channels:     make(map[string]*mockChannel),
		ResolveCalls: make(map[string]int),
		IterateCalls: make(map[string]int),
	}
}

func (m *MockProvider) AddChannel(handle string, attempts ...attempt) *MockProvider {
	m.channels[handle] = &mockChannel{attempts: attempts}
	return m
}

func (m *MockProvider) Resolve(_ context.Context, handle string) (models.Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResolveCalls[handle]++

	ch, ok := m.channels[handle]
	if !ok {
		return models.Channel{}, fmt.Errorf("%w: %s", ErrChannelResolution, handle)
	}
	if ch.resolveErr != nil {
		return models.Channel{}, ch.resolveErr
	}
	return models.Channel{ID: 1, Handle: handle, Title: "Title " + models.ChannelName(handle)}, nil
}

func (m *MockProvider) Iterate(_ context.Context, ch models.Channel, limit int) (MessageIterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.IterateCalls[ch.Handle]
	m.IterateCalls[ch.Handle]++

	scripts := m.channels[ch.Handle].attempts
	if len(scripts) == 0 {
		return NewSliceIterator(nil, limit), nil
	}
	if idx >= len(scripts) {
		idx = len(scripts) - 1
	}
	s := scripts[idx]
	msgs := s.msgs
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return &scriptIterator{msgs: msgs, err: s.err}, nil
}

func (m *MockProvider) DownloadMedia(_ context.Context, _ models.Message, dest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Downloads = append(m.Downloads, dest)
	if m.DownloadErr != nil {
		return m.DownloadErr
	}
	return os.WriteFile(dest, []byte("jpeg"), 0644)
}

type scriptIterator struct {
	msgs []models.Message
	err  error
	pos  int
}

func (it *scriptIterator) Next(ctx context.Context) (models.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.Message{}, false, err
	}
	if it.pos < len(it.msgs) {
		msg := it.msgs[it.pos]
		it.pos++
		return msg, true, nil
	}
	if it.err != nil {
		return models.Message{}, false, it.err
	}
	return models.Message{}, false, nil
}

// fakeClock records sleeps instead of blocking.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	n := len(c.sleeps)
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func messages(n int) []models.Message {
	out := make([]models.Message, n)
	for i := range out {
		out[i] = models.Message{
			ID:    n - i,
			Text:  fmt.Sprintf("post %d", n-i),
			Date:  time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC).Add(-time.Duration(i) * time.Minute),
			Views: 100 + i,
		}
	}
	return out
}

func testPacer(clock Clock) *Pacer {
	return NewPacer(DefaultPacingPolicy(), clock, rand.New(rand.NewPCG(1, 2)))
}
