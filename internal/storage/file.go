package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "leadpulse/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.state.json         (snapshot of all state)
//   - <prefix>.flags.jsonl        (append-only flag journal)
//
// Flags are the hot path (one write per fired notification), so they go to
// the journal; the snapshot is rewritten atomically on the colder writes
// (groups, log, settings) and on journal compaction.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalFile  *os.File

	flags    map[string]struct{}
	groups   map[string]map[string][]string
	logs     map[string]LogState
	settings map[string]Settings

	flagWrites int
}

type fileSnapshot struct {
	Flags    []string                       `json:"flags"`
	Groups   map[string]map[string][]string `json:"groups"`
	Logs     map[string]LogState            `json:"logs"`
	Settings map[string]Settings            `json:"settings"`
}

type flagRecord struct {
	Key string `json:"key"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".state.json"
	journalPath := prefix + ".flags.jsonl"

	s := &fileStore{
		log:          log,
		snapshotPath: snapPath,
		flags:        map[string]struct{}{},
		groups:       map[string]map[string][]string{},
		logs:         map[string]LogState{},
		settings:     map[string]Settings{},
	}

	_ = s.loadSnapshot(snapPath)
	_ = s.replayJournal(journalPath)

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.journalFile = jf
	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return nil
	}
	err := s.journalFile.Close()
	s.journalFile = nil
	return err
}

func (s *fileStore) SetFlag(ctx context.Context, key string) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journalFile == nil {
		return errors.New("flag journal closed")
	}
	if _, ok := s.flags[key]; ok {
		return nil
	}
	s.flags[key] = struct{}{}

	enc := json.NewEncoder(s.journalFile)
	if err := enc.Encode(flagRecord{Key: key}); err != nil {
		return err
	}
	s.flagWrites++
	if s.flagWrites%1000 == 0 {
		// Best-effort compact.
		if err := s.compactLocked(); err != nil {
			s.log.Debug("flag journal compact failed", logx.Any("err", err))
		}
	}
	return nil
}

func (s *fileStore) HasFlag(ctx context.Context, key string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.flags[strings.TrimSpace(key)]
	return ok, nil
}

func (s *fileStore) PutGroups(ctx context.Context, owner string, groups map[string][]string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[owner] = copyGroups(groups)
	return s.writeSnapshotLocked()
}

func (s *fileStore) GetGroups(ctx context.Context, owner string) (map[string][]string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[owner]
	if !ok {
		return nil, false, nil
	}
	return copyGroups(g), true, nil
}

func (s *fileStore) PutLog(ctx context.Context, owner string, st LogState) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Entries = append([]LogEntry(nil), st.Entries...)
	s.logs[owner] = st
	return s.writeSnapshotLocked()
}

func (s *fileStore) GetLog(ctx context.Context, owner string) (LogState, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.logs[owner]
	if !ok {
		return LogState{}, false, nil
	}
	st.Entries = append([]LogEntry(nil), st.Entries...)
	return st, true, nil
}

func (s *fileStore) PutSettings(ctx context.Context, owner string, st Settings) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[owner] = st
	return s.writeSnapshotLocked()
}

func (s *fileStore) GetSettings(ctx context.Context, owner string) (Settings, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[owner]
	return st, ok, nil
}

// compactLocked folds journaled flags into the snapshot and truncates the journal.
func (s *fileStore) compactLocked() error {
	if err := s.writeSnapshotLocked(); err != nil {
		return err
	}
	if err := s.journalFile.Truncate(0); err != nil {
		return err
	}
	_, err := s.journalFile.Seek(0, 2)
	return err
}

func (s *fileStore) writeSnapshotLocked() error {
	snap := fileSnapshot{
		Flags:    make([]string, 0, len(s.flags)),
		Groups:   s.groups,
		Logs:     s.logs,
		Settings: s.settings,
	}
	for k := range s.flags {
		snap.Flags = append(snap.Flags, k)
	}

	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(snap); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.snapshotPath)
}

func (s *fileStore) loadSnapshot(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var snap fileSnapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return err
	}
	for _, k := range snap.Flags {
		s.flags[k] = struct{}{}
	}
	if snap.Groups != nil {
		s.groups = snap.Groups
	}
	if snap.Logs != nil {
		s.logs = snap.Logs
	}
	if snap.Settings != nil {
		s.settings = snap.Settings
	}
	return nil
}

func (s *fileStore) replayJournal(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r flagRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Key == "" {
			continue
		}
		s.flags[r.Key] = struct{}{}
	}
	return sc.Err()
}
