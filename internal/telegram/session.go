package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/blockedby/tg-warehouse/internal/config"
)

// session string formats accepted in TG_SESSION_STRING
const (
	FormatGotgproto = "gotgproto"
	FormatTelethon  = "telethon"
	FormatPyrogram  = "pyrogram"
)

// SessionDialector returns the gorm dialector backing a persistent session.
// Postgres DSNs use the postgres driver, anything else is a sqlite file.
func SessionDialector(dsn string) gorm.Dialector {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return postgres.Open(dsn)
	}
	return sqlite.Open(dsn)
}

// NewSessionConstructor picks the session source: an exported session string
// if one is configured, otherwise the database named by TG_SESSION_DB.
func NewSessionConstructor(cfg *config.Config) (sessionMaker.SessionConstructor, error) {
	if cfg.TGSessionStr == "" {
		return sessionMaker.SqlSession(SessionDialector(cfg.TGSessionDB)), nil
	}

	switch cfg.TGSessionFormat {
	case "", FormatGotgproto:
		return sessionMaker.StringSession(cfg.TGSessionStr), nil
	case FormatTelethon:
		return sessionMaker.TelethonSession(cfg.TGSessionStr), nil
	case FormatPyrogram:
		return sessionMaker.PyrogramSession(cfg.TGSessionStr), nil
	default:
		return nil, fmt.Errorf("unknown session format %q", cfg.TGSessionFormat)
	}
}

// NewPersistentClient creates a telegram client from the configured session.
// Session updates (auth key refreshes) are written back when the session lives in a database.
func NewPersistentClient(_ context.Context, cfg *config.Config) (*gotgproto.Client, error) {
	sessionConstructor, err := NewSessionConstructor(cfg)
	if err != nil {
		return nil, err
	}

	clientOpts := &gotgproto.ClientOpts{
		Session:          sessionConstructor,
		DisableCopyright: true,
		InMemory:         cfg.TGSessionStr != "",
	}

	client, err := gotgproto.NewClient(
		cfg.TGApiID,
		cfg.TGApiHash,
		gotgproto.ClientTypePhone(""), // Empty = use session
		clientOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram client: %w", err)
	}

	return client, nil
}
