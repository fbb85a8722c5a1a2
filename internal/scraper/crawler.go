package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/metrics"
	"github.com/blockedby/tg-warehouse/internal/models"
)

// OutputWriter persists scraped partitions.
type OutputWriter interface {
	WriteChannelMessages(date, channel string, records []models.MessageRecord) error
	WriteManifest(date string, counts map[string]int) (*models.Manifest, error)
	// ImageDir creates and returns the image directory of a channel.
	ImageDir(channel string) (string, error)
}

// EventPublisher publishes run events
type EventPublisher interface {
	PublishRunCompleted(ctx context.Context, event RunCompletedEvent) error
}

// RunCompletedEvent is published after the manifest of a run was written.
type RunCompletedEvent struct {
	RunID           uuid.UUID      `json:"run_id"`
	Date            string         `json:"date"`
	ChannelsScraped map[string]int `json:"channels_scraped"`
	Failed          []string       `json:"failed,omitempty"`
	CompletedAt     time.Time      `json:"completed_at"`
}

// RunOptions holds options for a scrape run
type RunOptions struct {
	Date  string // partition date, YYYY-MM-DD
	Limit int    // max messages per channel
}

// DefaultLimit is used when RunOptions.Limit is not positive.
const DefaultLimit = 100

// ChannelResult is the outcome of one channel.
type ChannelResult struct {
	Channel  string // handle without @
	Title    string
	Count    int
	State    State
	Attempts int
	Err      error
}

// Report summarizes a run.
type Report struct {
	RunID      uuid.UUID
	Date       string
	Counts     map[string]int
	Results    []ChannelResult
	Manifest   *models.Manifest
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed returns the channels that did not finish.
func (r *Report) Failed() []ChannelResult {
	var out []ChannelResult
	for _, res := range r.Results {
		if res.State != StateDone {
			out = append(out, res)
		}
	}
	return out
}

// Total returns the number of messages written in the run.
func (r *Report) Total() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Crawler scrapes channels one after another.
type Crawler struct {
	provider  Provider
	output    OutputWriter
	pacer     *Pacer
	clock     Clock
	publisher EventPublisher
	log       *logger.Logger
}

// NewCrawler creates a crawler. publisher may be nil.
func NewCrawler(provider Provider, output OutputWriter, pacer *Pacer, clock Clock, publisher EventPublisher, log *logger.Logger) *Crawler {
	if clock == nil {
		clock = RealClock()
	}
	if pacer == nil {
		pacer = NewPacer(DefaultPacingPolicy(), clock, nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Crawler{
		provider:  provider,
		output:    output,
		pacer:     pacer,
		clock:     clock,
		publisher: publisher,
		log:       log,
	}
}

// uniqueChannels drops handles naming a channel already in the list,
// so "@name" and "name" are scraped once.
func (c *Crawler) uniqueChannels(channels []string) []string {
	seen := make(map[string]bool, len(channels))
	out := make([]string, 0, len(channels))
	for _, handle := range channels {
		name := models.ChannelName(handle)
		if seen[name] {
			c.log.Warn().Str("channel", handle).Msg("skipping duplicate channel")
			continue
		}
		seen[name] = true
		out = append(out, handle)
	}
	return out
}

// Run scrapes channels sequentially and writes the manifest for opts.Date.
// Per-channel failures are recorded in the report and never abort the run.
// If ctx is cancelled the partial report is returned with ctx.Err() and no manifest is written.
func (c *Crawler) Run(ctx context.Context, channels []string, opts RunOptions) (*Report, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	channels = c.uniqueChannels(channels)

	report := &Report{
		RunID:     uuid.New(),
		Date:      opts.Date,
		Counts:    make(map[string]int, len(channels)),
		StartedAt: c.clock.Now(),
	}

	c.log.Info().
		Str("run_id", report.RunID.String()).
		Int("channels", len(channels)).
		Int("limit", opts.Limit).
		Msg("starting stealth scrape")

	for i, handle := range channels {
		res := c.scrapeChannel(ctx, handle, opts)
		report.Results = append(report.Results, res)
		report.Counts[res.Channel] = res.Count
		metrics.ChannelsProcessed.WithLabelValues(string(res.State)).Inc()

		if err := ctx.Err(); err != nil {
			c.log.Warn().Str("channel", handle).Msg("run interrupted, manifest not written")
			report.FinishedAt = c.clock.Now()
			return report, err
		}

		if res.State != StateDone || i == len(channels)-1 {
			continue
		}

		gap := c.pacer.ChannelGap()
		metrics.ObservePause(string(gap.Kind), gap.Duration)
		c.log.Info().Dur("pause", gap.Duration).Msg("pausing before next channel")
		if err := c.pacer.Wait(ctx, gap); err != nil {
			c.log.Warn().Msg("run interrupted, manifest not written")
			report.FinishedAt = c.clock.Now()
			return report, err
		}
	}

	manifest, err := c.output.WriteManifest(opts.Date, report.Counts)
	report.FinishedAt = c.clock.Now()
	if err != nil {
		c.log.Error().Err(err).Str("date", opts.Date).Msg("failed to write manifest")
		return report, err
	}
	report.Manifest = manifest

	c.log.Info().
		Int("total", report.Total()).
		Int("failed", len(report.Failed())).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("scraping complete")

	c.publish(ctx, report)
	return report, nil
}

func (c *Crawler) publish(ctx context.Context, report *Report) {
	if c.publisher == nil {
		return
	}

	event := RunCompletedEvent{
		RunID:           report.RunID,
		Date:            report.Date,
		ChannelsScraped: report.Counts,
		CompletedAt:     report.FinishedAt,
	}
	for _, res := range report.Failed() {
		event.Failed = append(event.Failed, res.Channel)
	}

	if err := c.publisher.PublishRunCompleted(ctx, event); err != nil {
		c.log.Warn().Err(err).Msg("failed to publish run completed event")
	}
}

// scrapeChannel drives the flood-control state machine for one channel.
func (c *Crawler) scrapeChannel(ctx context.Context, handle string, opts RunOptions) ChannelResult {
	s := newScrapeSession(handle)
	log := c.log.WithField("channel", handle)
	res := ChannelResult{Channel: models.ChannelName(handle)}

	for {
		s.beginAttempt()
		log.Info().Int("limit", opts.Limit).Int("attempt", s.Attempts).Msg("starting stealth scrape of channel")

		ch, err := c.fetch(ctx, s, handle, opts.Limit, log)
		res.Attempts = s.Attempts
		res.Title = ch.Title

		if err == nil {
			if werr := c.output.WriteChannelMessages(opts.Date, res.Channel, s.records); werr != nil {
				s.State = StateFailed
				res.State = s.State
				res.Err = werr
				log.Error().Err(werr).Msg("failed to write channel messages")
				return res
			}
			s.State = StateDone
			res.State = s.State
			res.Count = len(s.records)
			metrics.MessagesScraped.WithLabelValues(res.Channel).Add(float64(res.Count))
			log.Info().Int("messages", res.Count).Msg("finished channel")
			return res
		}

		if ctx.Err() != nil {
			s.State = StateFailed
			res.State = s.State
			res.Err = ctx.Err()
			return res
		}

		if fw, ok := AsFloodWait(err); ok {
			metrics.FloodWaits.WithLabelValues(res.Channel).Inc()
			backoff, retry := s.onFloodWait(fw.Seconds)
			if !retry {
				res.State = s.State
				res.Err = fmt.Errorf("%w: %s after %d attempts", ErrFloodRetries, handle, s.Attempts)
				log.Error().Err(res.Err).Msg("giving up on channel")
				return res
			}

			log.Warn().Int("wait_seconds", fw.Seconds).Dur("sleep", backoff).Int("retry", s.Retries).Msg("flood wait, backing off")
			if serr := c.clock.Sleep(ctx, backoff); serr != nil {
				s.State = StateFailed
				res.State = s.State
				res.Err = serr
				return res
			}
			continue
		}

		s.State = StateFailed
		res.State = s.State
		if errors.Is(err, ErrChannelResolution) {
			res.Err = err
			log.Error().Err(err).Msg("channel resolution failed, skipping")
		} else {
			var tfe *TransientFetchError
			if !errors.As(err, &tfe) {
				err = &TransientFetchError{Channel: handle, Err: err}
			}
			res.Err = err
			log.Error().Err(err).Msg("error scraping channel")
		}
		return res
	}
}

// fetch runs a single attempt, buffering records in s.
func (c *Crawler) fetch(ctx context.Context, s *ScrapeSession, handle string, limit int, log *logger.Logger) (models.Channel, error) {
	ch, err := c.provider.Resolve(ctx, handle)
	if err != nil {
		return models.Channel{}, err
	}

	imageDir, err := c.output.ImageDir(ch.Name())
	if err != nil {
		return ch, err
	}

	it, err := c.provider.Iterate(ctx, ch, limit)
	if err != nil {
		return ch, err
	}

	for {
		msg, ok, err := it.Next(ctx)
		if err != nil {
			return ch, err
		}
		if !ok {
			return ch, nil
		}

		imagePath := ""
		if msg.HasPhoto() {
			dest := filepath.Join(imageDir, fmt.Sprintf("%d.jpg", msg.ID))
			if err := c.provider.DownloadMedia(ctx, msg, dest); err != nil {
				if _, flood := AsFloodWait(err); flood || ctx.Err() != nil {
					return ch, err
				}
				metrics.MediaDownloads.WithLabelValues("error").Inc()
				log.Warn().Err(err).Int("message_id", msg.ID).Msg("failed to download photo")
			} else {
				metrics.MediaDownloads.WithLabelValues("success").Inc()
				imagePath = dest
			}
		}
		s.records = append(s.records, models.NewMessageRecord(ch, msg, imagePath))

		pause := c.pacer.Next(s)
		metrics.ObservePause(string(pause.Kind), pause.Duration)
		switch pause.Kind {
		case PauseSafety:
			log.Info().Int("scraped", s.SessionCount).Dur("pause", pause.Duration).Msg("taking a long safety break")
		case PauseBatch:
			log.Info().Dur("pause", pause.Duration).Msg("taking a batch breather")
		}
		if err := c.pacer.Wait(ctx, pause); err != nil {
			return ch, err
		}
	}
}
