package settings

import (
	"sync"
)

// Source provides the configuration a sync cycle should use.
type Source interface {
	Current() Settings
}

// SourceFunc adapts a function to Source.
type SourceFunc func() Settings

// Current implements Source.
func (f SourceFunc) Current() Settings { return f() }

// ChangeFunc is called after settings change, with the previous and new value.
type ChangeFunc func(old, next Settings)

// Store owns the single configuration value. Update is the only way to mutate
// it; every successful Update is persisted and then announced to OnChange hooks.
type Store struct {
	path string

	// updateMu serializes Update/Reload so hooks observe changes in order.
	// Hooks must not call Update or Reload.
	updateMu sync.Mutex

	mu    sync.RWMutex
	cur   Settings
	hooks []ChangeFunc
}

// Open loads the settings at path (merged over defaults) into a new Store.
func Open(path string) (*Store, error) {
	cur, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cur: cur}, nil
}

// NewMemory returns a Store that never touches disk.
func NewMemory(s Settings) *Store {
	return &Store{cur: s}
}

// Path returns the backing file, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Current returns a copy of the persisted settings.
func (s *Store) Current() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Effective returns the persisted settings with environment overrides applied.
func (s *Store) Effective() Settings {
	return WithEnv(s.Current())
}

// OnChange registers fn to run after every change.
func (s *Store) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Update applies fn to the latest settings, validates and persists the
// result, then notifies hooks. With a backing file, fn sees the value on disk
// read under the file lock, so fields saved by another process are kept.
// On error the previous value is kept.
func (s *Store) Update(fn func(*Settings)) error {
	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	old := s.Current()
	next := old
	if s.path != "" {
		saved, err := Modify(s.path, fn)
		if err != nil {
			return err
		}
		next = saved
	} else {
		fn(&next)
		if err := next.Validate(); err != nil {
			return err
		}
	}

	s.set(next)
	if next != old {
		s.notify(old, next)
	}
	return nil
}

// Reload re-reads the backing file and notifies hooks if it changed.
// It reports whether the value changed.
func (s *Store) Reload() (bool, error) {
	if s.path == "" {
		return false, nil
	}

	s.updateMu.Lock()
	defer s.updateMu.Unlock()

	next, err := Load(s.path)
	if err != nil {
		return false, err
	}
	old := s.Current()
	if next == old {
		return false, nil
	}
	s.set(next)
	s.notify(old, next)
	return true, nil
}

func (s *Store) set(next Settings) {
	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()
}

func (s *Store) notify(old, next Settings) {
	s.mu.RLock()
	hooks := make([]ChangeFunc, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()

	for _, fn := range hooks {
		fn(old, next)
	}
}
