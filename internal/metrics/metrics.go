// Package metrics exposes prometheus collectors for long scrape runs.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	registerOnce sync.Once

	MessagesScraped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_messages_total",
		Help: "Messages written to raw partitions",
	}, []string{"channel"})

	ChannelsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_channels_total",
		Help: "Channels processed by final state",
	}, []string{"state"})

	FloodWaits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_flood_waits_total",
		Help: "Provider flood wait signals",
	}, []string{"channel"})

	PauseSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scraper_pause_seconds",
		Help:    "Pacing pauses by kind",
		Buckets: []float64{1, 2, 3, 4, 5, 10, 15, 20, 25, 30, 45, 60, 90, 120, 180, 240, 300},
	}, []string{"kind"})

	MediaDownloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_media_downloads_total",
		Help: "Photo downloads by status",
	}, []string{"status"})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Duration of provider requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "status"})
)

// MustRegister registers the package collectors once.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			MessagesScraped,
			ChannelsProcessed,
			FloodWaits,
			PauseSeconds,
			MediaDownloads,
			NetworkRequestDuration,
		)
	})
}

// StartServer serves /metrics on addr until ctx is done.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObservePause records a pacing pause.
func ObservePause(kind string, d time.Duration) {
	PauseSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveNetworkRequest records duration and status of a provider request.
func ObserveNetworkRequest(component, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	NetworkRequestDuration.WithLabelValues(component, operation, status).Observe(time.Since(start).Seconds())
}
