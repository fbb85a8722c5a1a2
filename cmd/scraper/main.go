package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blockedby/tg-warehouse/internal/config"
	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/metrics"
	"github.com/blockedby/tg-warehouse/internal/nats"
	"github.com/blockedby/tg-warehouse/internal/publisher"
	"github.com/blockedby/tg-warehouse/internal/scraper"
	"github.com/blockedby/tg-warehouse/internal/storage"
	"github.com/blockedby/tg-warehouse/internal/telegram"
)

// providerFactory connects to telegram. The returned func releases the session.
type providerFactory func(ctx context.Context, cfg *config.Config, log *logger.Logger) (scraper.Provider, func(), error)

// deps holds the collaborators main swaps out in tests.
type deps struct {
	newProvider providerFactory
	clock       scraper.Clock
	now         func() time.Time
	stderr      io.Writer
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], deps{
		newProvider: telegramProvider,
		clock:       scraper.RealClock(),
		now:         time.Now,
		stderr:      os.Stderr,
	}))
}

func run(ctx context.Context, args []string, rt deps) int {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(rt.stderr, "failed to load config: %v\n", err)
		return 1
	}

	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	fs.SetOutput(rt.stderr)
	path := fs.String("path", cfg.DataPath, "base directory of the raw partition tree")
	limit := fs.Int("limit", scraper.DefaultLimit, "maximum messages per channel")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	date := rt.now().Format(time.DateOnly)

	// 2. Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.ScrapeLogFile(date))
	if err != nil {
		fmt.Fprintf(rt.stderr, "failed to init logger: %v\n", err)
		return 1
	}
	defer log.Close()

	// 3. Credentials gate, before any network call
	if err := cfg.RequireTelegram(); err != nil {
		log.Error().Err(err).Msg("TG_API_ID and TG_API_HASH are required")
		return 1
	}

	// 4. Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		metrics.MustRegister(prometheus.DefaultRegisterer)
		metrics.StartServer(ctx, log.Logger, cfg.MetricsAddr)
	}

	// 5. Connect to NATS
	var pub scraper.EventPublisher
	if cfg.NatsURL != "" {
		nc, err := nats.New(ctx, cfg.NatsURL)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to nats, publishing disabled")
		} else {
			defer nc.Close()
			if err := nc.EnsureStream(ctx, publisher.StreamScrapes, []string{publisher.SubjectScrapeCompleted}); err != nil {
				log.Warn().Err(err).Msg("failed to ensure stream")
			}
			pub = publisher.NewNATSPublisher(nc)
		}
	}

	// 6. Connect to telegram
	provider, release, err := rt.newProvider(ctx, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to start telegram session")
		return 1
	}
	defer release()

	// 7. Scrape
	crawler := scraper.NewCrawler(provider, storage.NewWriter(*path), nil, rt.clock, pub, log)
	report, err := crawler.Run(ctx, cfg.Channels, scraper.RunOptions{Date: date, Limit: *limit})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Int("channels_done", len(report.Results)).Msg("scrape interrupted")
			return 0
		}
		log.Error().Err(err).Msg("scrape failed")
		return 1
	}

	for _, res := range report.Results {
		ev := log.Info()
		if res.Err != nil {
			ev = log.Warn().Err(res.Err)
		}
		ev.Str("channel", res.Channel).
			Str("state", string(res.State)).
			Int("messages", res.Count).
			Int("attempts", res.Attempts).
			Msg("channel summary")
	}
	return 0
}

func telegramProvider(ctx context.Context, cfg *config.Config, log *logger.Logger) (scraper.Provider, func(), error) {
	manager := telegram.NewManager(cfg, log)
	if err := manager.Start(ctx); err != nil {
		return nil, nil, err
	}
	limiter := telegram.NewRateLimiter(cfg.TGRps, 1)
	return telegram.NewClient(manager, limiter, cfg.FetchTimeout, log), manager.Stop, nil
}
