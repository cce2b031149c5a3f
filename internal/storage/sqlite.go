package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "leadpulse/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) SetFlag(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flags(key, at) VALUES(?,?) ON CONFLICT(key) DO NOTHING`,
		key, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) HasFlag(ctx context.Context, key string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	if key == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM flags WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) PutGroups(ctx context.Context, owner string, groups map[string][]string) error {
	return s.putJSON(ctx, "group_snapshots", owner, groups)
}

func (s *sqliteStore) GetGroups(ctx context.Context, owner string) (map[string][]string, bool, error) {
	var out map[string][]string
	ok, err := s.getJSON(ctx, "group_snapshots", owner, &out)
	return out, ok, err
}

func (s *sqliteStore) PutLog(ctx context.Context, owner string, st LogState) error {
	return s.putJSON(ctx, "notification_logs", owner, st)
}

func (s *sqliteStore) GetLog(ctx context.Context, owner string) (LogState, bool, error) {
	var out LogState
	ok, err := s.getJSON(ctx, "notification_logs", owner, &out)
	return out, ok, err
}

func (s *sqliteStore) PutSettings(ctx context.Context, owner string, st Settings) error {
	return s.putJSON(ctx, "settings", owner, st)
}

func (s *sqliteStore) GetSettings(ctx context.Context, owner string) (Settings, bool, error) {
	var out Settings
	ok, err := s.getJSON(ctx, "settings", owner, &out)
	return out, ok, err
}

// putJSON upserts one JSON document per owner into the given table.
// Tables are created by migrations.sql with identical (owner, data, at) shapes.
func (s *sqliteStore) putJSON(ctx context.Context, table, owner string, v any) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(
		`INSERT INTO %s(owner, data, at) VALUES(?,?,?)
		 ON CONFLICT(owner) DO UPDATE SET data=excluded.data, at=excluded.at`, table)
	_, err = s.db.ExecContext(ctx, q, owner, string(b), time.Now().UTC().Format(time.RFC3339Nano))
	return err
}

func (s *sqliteStore) getJSON(ctx context.Context, table, owner string, out any) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	var data string
	q := fmt.Sprintf(`SELECT data FROM %s WHERE owner = ?`, table)
	err := s.db.QueryRowContext(ctx, q, owner).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return false, err
	}
	return true, nil
}
