package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-fuego/fuego"
	"github.com/go-fuego/fuego/option"
)

// Server represents the Fuego API server.
type Server struct {
	fuego *fuego.Server
	deps  *Dependencies
	port  int
}

// Dependencies contains all service dependencies.
type Dependencies struct {
	MessagesRepo MessagesRepository
	ReportsRepo  ReportsRepository
	StatsRepo    StatsRepository
	// DataPath is the base of the raw partition tree holding the manifests.
	DataPath string
}

// Config holds API server configuration.
type Config struct {
	Port        int
	Title       string
	Description string
	Version     string
}

// NewServer creates a new Fuego API server.
func NewServer(cfg *Config, deps *Dependencies) *Server {
	s := fuego.NewServer(
		fuego.WithAddr(fmt.Sprintf(":%d", cfg.Port)),
		fuego.WithEngineOptions(
			fuego.WithOpenAPIConfig(fuego.OpenAPIConfig{
				PrettyFormatJSON: true,
				JSONFilePath:     "openapi.json",
				SwaggerURL:       "/docs",
				SpecURL:          "/openapi.json",
				UIHandler: func(specURL string) http.Handler {
					return ScalarHandler(specURL, cfg.Title, cfg.Description)
				},
			}),
		),
	)

	// Set OpenAPI info
	s.OpenAPI.Description().Info.Title = cfg.Title
	s.OpenAPI.Description().Info.Description = cfg.Description
	s.OpenAPI.Description().Info.Version = cfg.Version

	// Add Chi middleware (Fuego is net/http compatible)
	fuego.Use(s, middleware.RequestID)
	fuego.Use(s, middleware.RealIP)
	fuego.Use(s, middleware.Logger)
	fuego.Use(s, middleware.Recoverer)
	fuego.Use(s, cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	srv := &Server{
		fuego: s,
		deps:  deps,
		port:  cfg.Port,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) registerRoutes() {
	// Health check
	fuego.Get(s.fuego, "/health", s.healthCheck,
		option.Summary("Health Check"),
		option.Description("Returns the health status of the API"),
		option.Tags("System"),
	)

	// Channels API
	fuego.Get(s.fuego, "/api/v1/channels", s.listChannels,
		option.Summary("List Channels"),
		option.Description("Returns post statistics for every scraped channel"),
		option.Tags("Channels"),
	)

	fuego.Get(s.fuego, "/api/v1/channels/{name}/messages", s.channelMessages,
		option.Summary("Channel Messages"),
		option.Description("Returns the newest messages of a channel"),
		option.Tags("Channels"),
		option.Query("limit", "Items to return (default: 20, max: 100)"),
	)

	// Search API
	fuego.Get(s.fuego, "/api/v1/search/messages", s.searchMessages,
		option.Summary("Search Messages"),
		option.Description("Case insensitive search over message text"),
		option.Tags("Search"),
		option.Query("q", "Text to search for (required)"),
		option.Query("limit", "Items to return (default: 20, max: 100)"),
	)

	// Reports API
	fuego.Get(s.fuego, "/api/v1/reports/visual-content", s.visualContent,
		option.Summary("Visual Content Report"),
		option.Description("Returns image category counts per channel"),
		option.Tags("Analytics"),
	)

	fuego.Get(s.fuego, "/api/v1/stats", s.getStats,
		option.Summary("Get Statistics"),
		option.Description("Returns warehouse statistics"),
		option.Tags("Analytics"),
	)

	// Manifests API
	fuego.Get(s.fuego, "/api/v1/manifests/{date}", s.getManifest,
		option.Summary("Get Manifest"),
		option.Description("Returns the scrape manifest of a date. 404 means the run is incomplete or never ran"),
		option.Tags("Scraping"),
	)
}

// Start starts the API server.
func (s *Server) Start() error {
	return s.fuego.Run()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.fuego.Shutdown(ctx)
}

// Mux returns the underlying ServeMux for mounting additional routes.
func (s *Server) Mux() *http.ServeMux {
	return s.fuego.Mux
}
