package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blockedby/tg-warehouse/internal/api"
	"github.com/blockedby/tg-warehouse/internal/config"
	"github.com/blockedby/tg-warehouse/internal/database"
	"github.com/blockedby/tg-warehouse/internal/logger"
	"github.com/blockedby/tg-warehouse/internal/repository"
)

func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	log.Info().Msg("starting analytics api")

	// 3. Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Connect to database
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// 5. Initialize server
	server := api.NewServer(&api.Config{
		Port:        cfg.HTTPPort,
		Title:       "Medical Telegram Warehouse API",
		Description: "Analytics over scraped Telegram channels",
		Version:     "1.0.0",
	}, &api.Dependencies{
		MessagesRepo: repository.NewMessagesRepository(db.Pool),
		ReportsRepo:  repository.NewReportsRepository(db.Pool),
		StatsRepo:    repository.NewStatsRepository(db.Pool),
		DataPath:     cfg.DataPath,
	})

	// 6. Start server
	log.Info().Int("port", cfg.HTTPPort).Msg("starting web server")
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server error")
			stop()
		}
	}()

	// 7. Wait for shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
