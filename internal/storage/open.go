package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "clipbot/pkg/logx"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Store is the persistence API consumed by the engine and router.
//
// Implementations must be safe for concurrent use: the distribution loop
// appends sent links while the router mutates state and follows.
type Store interface {
	// Per-chat subscriber state. Blobs are opaque to the store.
	PutState(ctx context.Context, chatID int64, blob []byte) error
	DeleteState(ctx context.Context, chatID int64) error
	LoadStates(ctx context.Context) (map[int64][]byte, error)

	// Append-only sent-links log. ReplaceSent rewrites the log wholesale
	// (ledger truncation).
	AppendSent(ctx context.Context, url string) error
	ReplaceSent(ctx context.Context, urls []string) error
	LoadSent(ctx context.Context) ([]string, error)

	// Global follow set.
	AddFollow(ctx context.Context, name string) error
	RemoveFollow(ctx context.Context, name string) error
	LoadFollows(ctx context.Context) ([]string, error)

	// Singleton provider credential.
	PutCredential(ctx context.Context, token string, expiresAt time.Time) error
	GetCredential(ctx context.Context) (token string, expiresAt time.Time, ok bool, err error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
