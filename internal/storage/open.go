package storage

import (
	"context"
	"errors"
	"strings"

	logx "leadpulse/pkg/logx"
)

// Store is the persistence API injected into the engine.
//
// All state is scoped to the authenticated principal ("owner") except dedup
// flags, whose keys already embed their identity (see the key scheme in
// types.go). Implementations must be safe for concurrent use.
type Store interface {
	// SetFlag records a dedup flag. Setting an existing flag is a no-op.
	SetFlag(ctx context.Context, key string) error
	// HasFlag reports whether the flag was ever set.
	HasFlag(ctx context.Context, key string) (bool, error)

	// PutGroups replaces (not merges) the owner's group snapshot.
	PutGroups(ctx context.Context, owner string, groups map[string][]string) error
	GetGroups(ctx context.Context, owner string) (map[string][]string, bool, error)

	PutLog(ctx context.Context, owner string, st LogState) error
	GetLog(ctx context.Context, owner string) (LogState, bool, error)

	PutSettings(ctx context.Context, owner string, st Settings) error
	GetSettings(ctx context.Context, owner string) (Settings, bool, error)

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
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
