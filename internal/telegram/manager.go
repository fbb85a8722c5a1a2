package telegram

import (
	"context"
	"fmt"
	"sync"

	"github.com/celestix/gotgproto"
	"github.com/gotd/td/tg"

	"github.com/blockedby/tg-warehouse/internal/config"
	"github.com/blockedby/tg-warehouse/internal/logger"
)

// Status represents the Telegram client status.
type Status string

// Status constants define the possible states of the Telegram client.
const (
	StatusStopped      Status = "STOPPED"
	StatusInitializing Status = "INITIALIZING"
	StatusReady        Status = "READY"
	StatusError        Status = "ERROR"
)

// ClientFactory is a function that creates a telegram client.
type ClientFactory func(ctx context.Context, cfg *config.Config) (*gotgproto.Client, error)

// Manager handles the Telegram client session lifecycle.
type Manager struct {
	cfg *config.Config
	log *logger.Logger

	mu            sync.RWMutex
	client        *gotgproto.Client
	status        Status
	clientFactory ClientFactory
}

// NewManager creates a new Telegram Manager.
func NewManager(cfg *config.Config, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	return &Manager{
		cfg:           cfg,
		log:           log,
		status:        StatusStopped,
		clientFactory: NewPersistentClient,
	}
}

// SetClientFactory allows overriding the client creation logic (e.g. for testing).
func (m *Manager) SetClientFactory(f ClientFactory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clientFactory = f
}

// GetStatus returns the current Telegram client status.
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// GetClient returns the underlying Telegram client.
func (m *Manager) GetClient() *gotgproto.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client
}

// Start opens the session. Credentials are checked before any network activity.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.cfg.RequireTelegram(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.status == StatusReady {
		m.mu.Unlock()
		return nil
	}
	m.status = StatusInitializing
	factory := m.clientFactory
	m.mu.Unlock()

	client, err := factory(ctx, m.cfg)
	if err != nil {
		m.mu.Lock()
		m.status = StatusError
		m.mu.Unlock()
		return fmt.Errorf("start telegram session: %w", err)
	}

	m.mu.Lock()
	m.client = client
	m.status = StatusReady
	m.mu.Unlock()

	m.log.Info().Msg("telegram: client is ready")
	return nil
}

// API returns the raw tg.Client for direct API calls.
func (m *Manager) API() (*tg.Client, error) {
	proto := m.GetClient()
	if proto == nil {
		return nil, fmt.Errorf("telegram client not authorized")
	}
	return proto.API(), nil
}

// Stop ends the session.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		m.client.Stop()
		m.client = nil
		m.log.Info().Msg("telegram: session closed")
	}
	m.status = StatusStopped
}
