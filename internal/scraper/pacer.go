package scraper

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Clock abstracts time so pacing can be tested without sleeping.
type Clock interface {
	Now() time.Time
	// Sleep blocks for at least d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// RealClock returns a Clock backed by the system time.
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Range is an inclusive duration interval sampled uniformly.
type Range struct {
	Min time.Duration
	Max time.Duration
}

// PacingPolicy configures the delays injected between fetches.
type PacingPolicy struct {
	MessageDelay Range // after every message
	BatchSize    int   // messages per batch breather
	BatchBreak   Range
	SessionSize  int // messages per safety break
	SafetyBreak  Range
	ChannelGap   Range // between channels
}

// DefaultPacingPolicy returns the production pacing.
func DefaultPacingPolicy() PacingPolicy {
	return PacingPolicy{
		MessageDelay: Range{Min: 2 * time.Second, Max: 5 * time.Second},
		BatchSize:    20,
		BatchBreak:   Range{Min: 15 * time.Second, Max: 30 * time.Second},
		SessionSize:  100,
		SafetyBreak:  Range{Min: 120 * time.Second, Max: 300 * time.Second},
		ChannelGap:   Range{Min: 30 * time.Second, Max: 60 * time.Second},
	}
}

// PauseKind identifies which rule produced a pause.
type PauseKind string

// PauseKind constants.
const (
	PauseMessage PauseKind = "message"
	PauseBatch   PauseKind = "batch"
	PauseSafety  PauseKind = "safety"
	PauseChannel PauseKind = "channel"
)

// Pause is a single delay taken by the pacer.
type Pause struct {
	Kind     PauseKind
	Duration time.Duration
}

// Pacer decides and performs pauses.
type Pacer struct {
	policy PacingPolicy
	clock  Clock

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPacer creates a pacer. A nil clock uses the real clock and a nil rng is seeded randomly.
func NewPacer(policy PacingPolicy, clock Clock, rng *rand.Rand) *Pacer {
	if clock == nil {
		clock = RealClock()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Pacer{policy: policy, clock: clock, rng: rng}
}

// Policy returns the configured policy.
func (p *Pacer) Policy() PacingPolicy {
	return p.policy
}

// Next counts one processed message in s and returns the pause due before the next fetch.
// A safety break wins over a coinciding batch breather and resets the batch counter too.
func (p *Pacer) Next(s *ScrapeSession) Pause {
	s.BatchCount++
	s.SessionCount++

	if p.policy.SessionSize > 0 && s.SessionCount%p.policy.SessionSize == 0 {
		s.BatchCount = 0
		return Pause{Kind: PauseSafety, Duration: p.sample(p.policy.SafetyBreak)}
	}
	if p.policy.BatchSize > 0 && s.BatchCount >= p.policy.BatchSize {
		s.BatchCount = 0
		return Pause{Kind: PauseBatch, Duration: p.sample(p.policy.BatchBreak)}
	}
	return Pause{Kind: PauseMessage, Duration: p.sample(p.policy.MessageDelay)}
}

// ChannelGap returns the pause taken between two channels.
func (p *Pacer) ChannelGap() Pause {
	return Pause{Kind: PauseChannel, Duration: p.sample(p.policy.ChannelGap)}
}

// Wait sleeps for the pause. It returns ctx.Err() if cancelled first.
func (p *Pacer) Wait(ctx context.Context, pause Pause) error {
	return p.clock.Sleep(ctx, pause.Duration)
}

func (p *Pacer) sample(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.Min + time.Duration(p.rng.Int64N(int64(r.Max-r.Min)+1))
}
