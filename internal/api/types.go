package api

import (
	"time"

	"github.com/blockedby/tg-warehouse/internal/models"
	"github.com/blockedby/tg-warehouse/internal/repository"
)

// ============================================================================
// Common Types
// ============================================================================

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status" example:"ok" description:"Health status"`
	Version string `json:"version" example:"dev" description:"Application version"`
}

// ============================================================================
// Channel Types
// ============================================================================

// ChannelResponse represents channel statistics in API responses.
type ChannelResponse struct {
	Name            string     `json:"name" description:"Channel handle without @"`
	Title           string     `json:"title" description:"Channel display title"`
	TotalPosts      int        `json:"total_posts" description:"Number of stored posts"`
	AvgViews        float64    `json:"avg_views" description:"Average view count"`
	PostsWithImages int        `json:"posts_with_images" description:"Posts with a saved image"`
	LastPostAt      *time.Time `json:"last_post_at,omitempty" description:"Newest post timestamp"`
}

// ChannelsListResponse contains the list of channels.
type ChannelsListResponse struct {
	Channels []ChannelResponse `json:"channels" description:"Channels ordered by post count"`
	Total    int               `json:"total" description:"Number of channels"`
}

// ============================================================================
// Message Types
// ============================================================================

// MessageResponse represents a stored message.
type MessageResponse struct {
	MessageID    int64      `json:"message_id" description:"Message id, unique within a channel"`
	ChannelName  string     `json:"channel_name" description:"Channel handle without @"`
	ChannelTitle string     `json:"channel_title" description:"Channel display title"`
	MessageDate  *time.Time `json:"message_date,omitempty" description:"Post timestamp"`
	MessageText  string     `json:"message_text" description:"Post text"`
	HasMedia     bool       `json:"has_media" description:"Whether the post has attached media"`
	ImagePath    *string    `json:"image_path,omitempty" description:"Saved image path"`
	Views        int        `json:"views" description:"View count"`
	Forwards     int        `json:"forwards" description:"Forward count"`
}

// MessagesListResponse contains a list of messages.
type MessagesListResponse struct {
	Messages []MessageResponse `json:"messages" description:"Messages, newest first"`
	Total    int               `json:"total" description:"Number of returned messages"`
	Limit    int               `json:"limit" description:"Applied limit"`
}

// ============================================================================
// Report Types
// ============================================================================

// VisualContentRow is one channel and category pair.
type VisualContentRow struct {
	ChannelName   string  `json:"channel_name" description:"Channel handle without @"`
	Category      string  `json:"image_category" description:"promotional, product_display, lifestyle or other"`
	Images        int     `json:"images" description:"Number of images"`
	AvgConfidence float64 `json:"avg_confidence" description:"Average detection confidence"`
}

// VisualContentResponse contains the visual content report.
type VisualContentResponse struct {
	Rows []VisualContentRow `json:"rows" description:"Image counts per channel and category"`
}

// StatsResponse contains warehouse statistics.
type StatsResponse struct {
	TotalMessages   int        `json:"total_messages" description:"Stored messages"`
	Channels        int        `json:"channels" description:"Distinct channels"`
	MessagesToday   int        `json:"messages_today" description:"Messages posted today"`
	PostsWithImages int        `json:"posts_with_images" description:"Messages with a saved image"`
	ImagesDetected  int        `json:"images_detected" description:"Images with detection results"`
	LastLoadedAt    *time.Time `json:"last_loaded_at,omitempty" description:"Time of the last load"`
}

// ManifestResponse is the scrape manifest of a date.
type ManifestResponse struct {
	Date            string         `json:"date" description:"Run date (YYYY-MM-DD)"`
	ChannelsScraped map[string]int `json:"channels_scraped" description:"Message count per channel"`
	Timestamp       string         `json:"timestamp" description:"Manifest write time"`
	Total           int            `json:"total" description:"Messages across all channels"`
}

// ============================================================================
// Conversion Functions
// ============================================================================

// ChannelsFromRepo converts repository channel stats.
func ChannelsFromRepo(stats []repository.ChannelStats) []ChannelResponse {
	out := make([]ChannelResponse, 0, len(stats))
	for _, s := range stats {
		out = append(out, ChannelResponse{
			Name:            s.ChannelName,
			Title:           s.ChannelTitle,
			TotalPosts:      s.TotalPosts,
			AvgViews:        s.AvgViews,
			PostsWithImages: s.PostsWithImages,
			LastPostAt:      s.LastPostAt,
		})
	}
	return out
}

// MessagesFromRepo converts repository messages.
func MessagesFromRepo(msgs []repository.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{
			MessageID:    m.MessageID,
			ChannelName:  m.ChannelName,
			ChannelTitle: m.ChannelTitle,
			MessageDate:  m.MessageDate,
			MessageText:  m.MessageText,
			HasMedia:     m.HasMedia,
			ImagePath:    m.ImagePath,
			Views:        m.Views,
			Forwards:     m.Forwards,
		})
	}
	return out
}

// VisualContentFromRepo converts the repository report.
func VisualContentFromRepo(rows []repository.VisualContent) []VisualContentRow {
	out := make([]VisualContentRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, VisualContentRow{
			ChannelName:   r.ChannelName,
			Category:      r.Category,
			Images:        r.Images,
			AvgConfidence: r.AvgConfidence,
		})
	}
	return out
}

// StatsFromRepo converts repository stats.
func StatsFromRepo(s *repository.WarehouseStats) StatsResponse {
	return StatsResponse{
		TotalMessages:   s.TotalMessages,
		Channels:        s.Channels,
		MessagesToday:   s.MessagesToday,
		PostsWithImages: s.PostsWithImages,
		ImagesDetected:  s.ImagesDetected,
		LastLoadedAt:    s.LastLoadedAt,
	}
}

// ManifestFromModel converts a stored manifest.
func ManifestFromModel(m *models.Manifest) ManifestResponse {
	return ManifestResponse{
		Date:            m.Date,
		ChannelsScraped: m.ChannelsScraped,
		Timestamp:       m.Timestamp,
		Total:           m.Total(),
	}
}
