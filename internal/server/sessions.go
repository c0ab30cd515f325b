package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/raaihank/text-pseudonymizer/internal/registry"
)

// SnapshotStore persists registry state between requests
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, sessionID string, snapshot registry.Snapshot) error
	LoadSnapshot(ctx context.Context, sessionID string) (registry.Snapshot, bool, error)
}

// session owns one registry. Its mutex is held for a whole document pass so
// requests in the same session are applied one after another.
type session struct {
	mu       sync.Mutex
	id       string
	reg      *registry.Registry
	loaded   bool
	lastUsed time.Time
}

type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
	store    SnapshotStore
	opts     registry.Options
}

func newSessionManager(store SnapshotStore, opts registry.Options) *sessionManager {
	return &sessionManager{
		sessions: make(map[string]*session),
		store:    store,
		opts:     opts,
	}
}

// acquire returns the session locked. The first use of a session id restores
// its registry from the snapshot store when one is configured.
func (m *sessionManager) acquire(ctx context.Context, id string) (*session, error) {
	for {
		m.mu.Lock()
		s, ok := m.sessions[id]
		if !ok {
			s = &session{id: id}
			m.sessions[id] = s
		}
		m.mu.Unlock()

		s.mu.Lock()
		// An idle eviction may have raced with the lookup
		m.mu.Lock()
		current := m.sessions[id] == s
		m.mu.Unlock()
		if !current {
			s.mu.Unlock()
			continue
		}

		if !s.loaded {
			if err := m.load(ctx, s); err != nil {
				s.mu.Unlock()
				return nil, err
			}
		}
		s.lastUsed = time.Now()
		return s, nil
	}
}

func (m *sessionManager) load(ctx context.Context, s *session) error {
	m.mu.Lock()
	opts := m.opts
	m.mu.Unlock()

	if m.store != nil {
		snapshot, found, err := m.store.LoadSnapshot(ctx, s.id)
		if err != nil {
			return fmt.Errorf("failed to restore session: %w", err)
		}
		if found {
			s.reg = registry.Restore(snapshot, opts)
			s.loaded = true
			return nil
		}
	}
	s.reg = registry.New(opts)
	s.loaded = true
	return nil
}

func (m *sessionManager) release(s *session) {
	s.mu.Unlock()
}

// persist writes the session registry to the snapshot store. Must be called
// with the session held.
func (m *sessionManager) persist(ctx context.Context, s *session) error {
	if m.store == nil {
		return nil
	}
	return m.store.SaveSnapshot(ctx, s.id, s.reg.Snapshot())
}

// correspondences returns the registry map of a session known to this
// process, or false when the session has not been used here
func (m *sessionManager) correspondences(id string) (map[string]string, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, false
	}
	return s.reg.Correspondences(), true
}

// setOptions changes the fallback options used for sessions created later
func (m *sessionManager) setOptions(opts registry.Options) {
	m.mu.Lock()
	m.opts = opts
	m.mu.Unlock()
}

// evictIdle drops in-memory sessions unused since before cutoff. Sessions
// with a snapshot store are restored on their next use; without one their
// correspondences are lost.
func (m *sessionManager) evictIdle(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
		s.mu.Unlock()
	}
	return evicted
}

func (m *sessionManager) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
