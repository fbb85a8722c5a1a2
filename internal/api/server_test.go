package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/tg-warehouse/internal/repository"
	"github.com/blockedby/tg-warehouse/internal/storage"
)

// Mock implementations for testing

type mockMessagesRepo struct {
	channels  []repository.ChannelStats
	messages  []repository.Message
	err       error
	lastName  string
	lastQuery string
	lastLimit int
}

func (m *mockMessagesRepo) ListChannels(ctx context.Context) ([]repository.ChannelStats, error) {
	return m.channels, m.err
}

func (m *mockMessagesRepo) ChannelMessages(ctx context.Context, channel string, limit int) ([]repository.Message, error) {
	m.lastName, m.lastLimit = channel, limit
	return m.messages, m.err
}

func (m *mockMessagesRepo) SearchMessages(ctx context.Context, query string, limit int) ([]repository.Message, error) {
	m.lastQuery, m.lastLimit = query, limit
	return m.messages, m.err
}

type mockReportsRepo struct {
	rows []repository.VisualContent
}

func (m *mockReportsRepo) VisualContent(ctx context.Context) ([]repository.VisualContent, error) {
	return m.rows, nil
}

type mockStatsRepo struct {
	stats *repository.WarehouseStats
}

func (m *mockStatsRepo) GetStats(ctx context.Context) (*repository.WarehouseStats, error) {
	return m.stats, nil
}

func newTestServer(t *testing.T, msgs *mockMessagesRepo) *Server {
	t.Helper()
	if msgs == nil {
		msgs = &mockMessagesRepo{}
	}
	cfg := &Config{
		Port:        8080,
		Title:       "Test API",
		Description: "Test",
		Version:     "1.0.0",
	}
	deps := &Dependencies{
		MessagesRepo: msgs,
		ReportsRepo: &mockReportsRepo{rows: []repository.VisualContent{
			{ChannelName: "lobelia4cosmetics", Category: "promotional", Images: 4, AvgConfidence: 0.7},
		}},
		StatsRepo: &mockStatsRepo{stats: &repository.WarehouseStats{TotalMessages: 300, Channels: 3}},
		DataPath:  t.TempDir(),
	}
	return NewServer(cfg, deps)
}

func serve(srv *Server, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	srv.Mux().ServeHTTP(w, req)
	return w
}

func TestNewServer(t *testing.T) {
	srv := newTestServer(t, nil)
	require.NotNil(t, srv)
	require.NotNil(t, srv.fuego)
}

func TestHealthEndpoint(t *testing.T) {
	w := serve(newTestServer(t, nil), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestListChannelsEndpoint(t *testing.T) {
	last := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	repo := &mockMessagesRepo{channels: []repository.ChannelStats{
		{ChannelName: "tikvahpharma", ChannelTitle: "Tikvah Pharma", TotalPosts: 100, AvgViews: 512.5, PostsWithImages: 40, LastPostAt: &last},
		{ChannelName: "Thequorachannel", TotalPosts: 80},
	}}

	w := serve(newTestServer(t, repo), "/api/v1/channels")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ChannelsListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "tikvahpharma", resp.Channels[0].Name)
	assert.InDelta(t, 512.5, resp.Channels[0].AvgViews, 1e-9)
	assert.Equal(t, 40, resp.Channels[0].PostsWithImages)
}

func TestListChannelsEndpoint_RepoError(t *testing.T) {
	repo := &mockMessagesRepo{err: errors.New("connection refused")}

	w := serve(newTestServer(t, repo), "/api/v1/channels")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChannelMessagesEndpoint(t *testing.T) {
	repo := &mockMessagesRepo{messages: []repository.Message{
		{MessageID: 2, ChannelName: "tikvahpharma", MessageText: "ቅናሽ", Views: 10},
	}}
	srv := newTestServer(t, repo)

	w := serve(srv, "/api/v1/channels/tikvahpharma/messages")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp MessagesListResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "tikvahpharma", repo.lastName)
	assert.Equal(t, DefaultLimit, repo.lastLimit)
	assert.Equal(t, DefaultLimit, resp.Limit)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "ቅናሽ", resp.Messages[0].MessageText)
}

func TestChannelMessagesEndpoint_Limit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{query: "?limit=5", want: 5},
		{query: "?limit=500", want: MaxLimit},
		{query: "?limit=0", want: DefaultLimit},
		{query: "?limit=abc", want: DefaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			repo := &mockMessagesRepo{}
			w := serve(newTestServer(t, repo), "/api/v1/channels/tikvahpharma/messages"+tt.query)
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.want, repo.lastLimit)
		})
	}
}

func TestSearchMessagesEndpoint(t *testing.T) {
	repo := &mockMessagesRepo{messages: []repository.Message{{MessageID: 1, MessageText: "Paracetamol"}}}
	srv := newTestServer(t, repo)

	w := serve(srv, "/api/v1/search/messages?q=paracetamol&limit=10")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "paracetamol", repo.lastQuery)
	assert.Equal(t, 10, repo.lastLimit)

	w = serve(srv, "/api/v1/search/messages")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVisualContentEndpoint(t *testing.T) {
	w := serve(newTestServer(t, nil), "/api/v1/reports/visual-content")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp VisualContentResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "promotional", resp.Rows[0].Category)
	assert.Equal(t, 4, resp.Rows[0].Images)
}

func TestStatsEndpoint(t *testing.T) {
	w := serve(newTestServer(t, nil), "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp StatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 300, resp.TotalMessages)
	assert.Equal(t, 3, resp.Channels)
}

func TestManifestEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	w := serve(srv, "/api/v1/manifests/2024-01-15")
	assert.Equal(t, http.StatusNotFound, w.Code)

	_, err := storage.NewWriter(srv.deps.DataPath).WriteManifest("2024-01-15", map[string]int{"tikvahpharma": 100, "lobelia4cosmetics": 20})
	require.NoError(t, err)

	w = serve(srv, "/api/v1/manifests/2024-01-15")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ManifestResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "2024-01-15", resp.Date)
	assert.Equal(t, 120, resp.Total)
	assert.Equal(t, 100, resp.ChannelsScraped["tikvahpharma"])

	w = serve(srv, "/api/v1/manifests/yesterday")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScalarHandler(t *testing.T) {
	h := ScalarHandler("/openapi.json", "Warehouse <b>API</b>", "Analytics & reports")

	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, `data-url="/openapi.json"`)
	assert.Contains(t, body, "Warehouse &lt;b&gt;API&lt;/b&gt; - Reference")
	assert.Contains(t, body, `"Analytics"`)
	assert.NotContains(t, body, "<b>API</b>")
}
