package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/blockedby/tg-warehouse/internal/config"
	"github.com/blockedby/tg-warehouse/internal/database"
	"github.com/blockedby/tg-warehouse/internal/loader"
	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/migrator"
	"github.com/blockedby/tg-warehouse/internal/nats"
	"github.com/blockedby/tg-warehouse/internal/publisher"
	"github.com/blockedby/tg-warehouse/internal/scraper"
	"github.com/blockedby/tg-warehouse/migrations"
)

const consumerName = "warehouse-loader"

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	path := flag.String("path", cfg.DataPath, "base directory of the raw partition tree")
	follow := flag.Bool("follow", false, "reload on every completed scrape run")
	flag.Parse()

	// 2. Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	// 3. Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Run migrations
	m, err := migrator.NewWithFS(migrations.FS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create migrator")
	}
	if err := m.Up(ctx, cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	// 5. Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	l := loader.New(db.Pool, log)
	if _, err := l.Load(ctx, *path); err != nil {
		log.Error().Err(err).Msg("load failed")
		if !*follow {
			return
		}
	}

	if !*follow {
		return
	}

	// 6. Follow completed runs
	if cfg.NatsURL == "" {
		log.Error().Msg("NATS_URL is required with --follow")
		return
	}
	nc, err := nats.New(ctx, cfg.NatsURL)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to nats")
		return
	}
	defer nc.Close()

	if err := nc.EnsureStream(ctx, publisher.StreamScrapes, []string{publisher.SubjectScrapeCompleted}); err != nil {
		log.Error().Err(err).Msg("failed to ensure stream")
		return
	}

	log.Info().Str("subject", publisher.SubjectScrapeCompleted).Msg("waiting for completed runs")
	err = nc.Subscribe(ctx, publisher.StreamScrapes, consumerName, publisher.SubjectScrapeCompleted,
		func(ctx context.Context, data []byte) error {
			var event scraper.RunCompletedEvent
			if err := json.Unmarshal(data, &event); err != nil {
				// malformed events are acked and dropped
				log.Warn().Err(err).Msg("invalid run completed event")
				return nil
			}
			log.Info().
				Str("run_id", event.RunID.String()).
				Str("date", event.Date).
				Msg("run completed, reloading warehouse")
			_, err := l.Load(ctx, *path)
			return err
		})
	if err != nil {
		log.Error().Err(err).Msg("subscription failed")
	}
	log.Info().Msg("shutdown complete")
}
