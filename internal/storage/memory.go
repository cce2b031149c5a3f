package storage

import (
	"context"
	"sync"
)

// memoryStore keeps everything in process memory. It backs tests and the
// "memory" driver; nothing survives a restart.
type memoryStore struct {
	mu       sync.Mutex
	flags    map[string]struct{}
	groups   map[string]map[string][]string
	logs     map[string]LogState
	settings map[string]Settings
}

// NewMemory returns an empty volatile store.
func NewMemory() Store {
	return &memoryStore{
		flags:    map[string]struct{}{},
		groups:   map[string]map[string][]string{},
		logs:     map[string]LogState{},
		settings: map[string]Settings{},
	}
}

func (s *memoryStore) SetFlag(ctx context.Context, key string) error {
	_ = ctx
	if key == "" {
		return nil
	}
	s.mu.Lock()
	s.flags[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) HasFlag(ctx context.Context, key string) (bool, error) {
	_ = ctx
	s.mu.Lock()
	_, ok := s.flags[key]
	s.mu.Unlock()
	return ok, nil
}

func (s *memoryStore) PutGroups(ctx context.Context, owner string, groups map[string][]string) error {
	_ = ctx
	s.mu.Lock()
	s.groups[owner] = copyGroups(groups)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) GetGroups(ctx context.Context, owner string) (map[string][]string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[owner]
	if !ok {
		return nil, false, nil
	}
	return copyGroups(g), true, nil
}

func (s *memoryStore) PutLog(ctx context.Context, owner string, st LogState) error {
	_ = ctx
	st.Entries = append([]LogEntry(nil), st.Entries...)
	s.mu.Lock()
	s.logs[owner] = st
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) GetLog(ctx context.Context, owner string) (LogState, bool, error) {
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

func (s *memoryStore) PutSettings(ctx context.Context, owner string, st Settings) error {
	_ = ctx
	s.mu.Lock()
	s.settings[owner] = st
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) GetSettings(ctx context.Context, owner string) (Settings, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settings[owner]
	return st, ok, nil
}

func (s *memoryStore) Close() error { return nil }

func copyGroups(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}
