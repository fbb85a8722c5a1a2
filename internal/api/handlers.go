// Package api provides HTTP handlers for the analytics REST API.
package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-fuego/fuego"

	"github.com/blockedby/tg-warehouse/internal/models"
	"github.com/blockedby/tg-warehouse/internal/storage"
)

// Limit bounds for list endpoints.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ============================================================================
// Health
// ============================================================================

func (s *Server) healthCheck(c fuego.ContextNoBody) (HealthResponse, error) {
	return HealthResponse{
		Status:  "ok",
		Version: "dev",
	}, nil
}

// ============================================================================
// Channels Handlers
// ============================================================================

func (s *Server) listChannels(c fuego.ContextNoBody) (ChannelsListResponse, error) {
	stats, err := s.deps.MessagesRepo.ListChannels(c.Context())
	if err != nil {
		return ChannelsListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return ChannelsListResponse{
		Channels: ChannelsFromRepo(stats),
		Total:    len(stats),
	}, nil
}

func (s *Server) channelMessages(c fuego.ContextNoBody) (MessagesListResponse, error) {
	name := models.ChannelName(strings.TrimSpace(c.PathParam("name")))
	if name == "" {
		return MessagesListResponse{}, fuego.BadRequestError{Detail: "Channel name is required"}
	}
	limit := parseLimit(c.QueryParam("limit"))

	msgs, err := s.deps.MessagesRepo.ChannelMessages(c.Context(), name, limit)
	if err != nil {
		return MessagesListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return MessagesListResponse{
		Messages: MessagesFromRepo(msgs),
		Total:    len(msgs),
		Limit:    limit,
	}, nil
}

// ============================================================================
// Search Handlers
// ============================================================================

func (s *Server) searchMessages(c fuego.ContextNoBody) (MessagesListResponse, error) {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return MessagesListResponse{}, fuego.BadRequestError{Detail: "Query parameter q is required"}
	}
	limit := parseLimit(c.QueryParam("limit"))

	msgs, err := s.deps.MessagesRepo.SearchMessages(c.Context(), query, limit)
	if err != nil {
		return MessagesListResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return MessagesListResponse{
		Messages: MessagesFromRepo(msgs),
		Total:    len(msgs),
		Limit:    limit,
	}, nil
}

// ============================================================================
// Reports Handlers
// ============================================================================

func (s *Server) visualContent(c fuego.ContextNoBody) (VisualContentResponse, error) {
	rows, err := s.deps.ReportsRepo.VisualContent(c.Context())
	if err != nil {
		return VisualContentResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}
	return VisualContentResponse{Rows: VisualContentFromRepo(rows)}, nil
}

func (s *Server) getStats(c fuego.ContextNoBody) (StatsResponse, error) {
	stats, err := s.deps.StatsRepo.GetStats(c.Context())
	if err != nil {
		return StatsResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}
	return StatsFromRepo(stats), nil
}

// ============================================================================
// Manifests Handlers
// ============================================================================

func (s *Server) getManifest(c fuego.ContextNoBody) (ManifestResponse, error) {
	date := c.PathParam("date")
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return ManifestResponse{}, fuego.BadRequestError{Detail: "Invalid date, expected YYYY-MM-DD"}
	}

	m, err := storage.ReadManifest(s.deps.DataPath, date)
	if err != nil {
		if errors.Is(err, storage.ErrManifestNotFound) {
			return ManifestResponse{}, fuego.NotFoundError{Detail: "Manifest not found, run incomplete or absent"}
		}
		return ManifestResponse{}, fuego.InternalServerError{Detail: err.Error()}
	}

	return ManifestFromModel(m), nil
}

// ============================================================================
// Helpers
// ============================================================================

func parseLimit(s string) int {
	limit := parseIntWithDefault(s, DefaultLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}

func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
