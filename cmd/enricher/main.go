package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockedby/tg-warehouse/internal/config"
	"github.com/blockedby/tg-warehouse/internal/enrichment"
	"github.com/blockedby/tg-warehouse/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	path := flag.String("path", cfg.DataPath, "base directory of the raw partition tree")
	detectorURL := flag.String("detector", cfg.DetectorURL, "object detection endpoint")
	timeout := flag.Duration("timeout", 60*time.Second, "per image detection timeout")
	flag.Parse()

	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("detector", *detectorURL).Msg("starting image detection")
	e := enrichment.New(enrichment.NewHTTPDetector(*detectorURL, *timeout), log)
	if _, err := e.Run(ctx, *path); err != nil {
		log.Error().Err(err).Msg("enrichment failed")
		stop()
		_ = log.Close()
		os.Exit(1)
	}
}
