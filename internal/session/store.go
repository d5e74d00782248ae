// Package session holds the in-memory registry of live game sessions.
// It is the single authority for which players are currently playing.
package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/snake-game/backend/internal/domain"
)

// entry wraps one session with its own lock so that writes to the same
// session serialize while writes to different sessions proceed in parallel.
// ended marks a session that has been removed; a late writer holding a
// stale pointer must not resurrect it.
type entry struct {
	mu      sync.Mutex
	session domain.Session
	ended   bool
}

// Store is a concurrency-safe registry of active sessions. All sessions
// returned by its methods are deep copies; callers never share memory with
// the registry.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewStore creates an empty session registry
func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
	}
}

// Create registers a new session for the given user and returns its
// snapshot. The session starts with the standard initial game state and a
// fresh heartbeat.
func (s *Store) Create(userID, username string, mode domain.GameMode) domain.Session {
	now := time.Now().UTC()
	sess := domain.Session{
		ID:            uuid.New().String(),
		UserID:        userID,
		Username:      username,
		Score:         0,
		GameMode:      mode,
		GameState:     domain.NewGameState(),
		StartedAt:     now,
		LastUpdatedAt: now,
	}

	s.mu.Lock()
	s.entries[sess.ID] = &entry{session: sess}
	s.mu.Unlock()

	return sess.Clone()
}

// Get returns a snapshot of the session regardless of its heartbeat age.
// Liveness filtering is the caller's concern.
func (s *Store) Get(id string) (domain.Session, error) {
	e := s.lookup(id)
	if e == nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Update replaces the session's game state, derives the score from it and
// bumps the heartbeat. Only the owning user may update; a missing session
// is reported before a foreign one.
func (s *Store) Update(id, userID string, state domain.GameState) (domain.Session, error) {
	e := s.lookup(id)
	if e == nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if e.session.UserID != userID {
		return domain.Session{}, domain.ErrSessionForbidden
	}

	e.session.GameState = state.Clone()
	e.session.Score = state.Score
	e.session.LastUpdatedAt = time.Now().UTC()

	return e.session.Clone(), nil
}

// End removes the session and returns its final snapshot. Ending twice
// reports the session as missing, same as ending one that never existed.
func (s *Store) End(id, userID string) (domain.Session, error) {
	e := s.lookup(id)
	if e == nil {
		return domain.Session{}, domain.ErrSessionNotFound
	}

	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if e.session.UserID != userID {
		e.mu.Unlock()
		return domain.Session{}, domain.ErrSessionForbidden
	}
	e.ended = true
	final := e.session.Clone()
	e.mu.Unlock()

	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()

	return final, nil
}

// ListActive returns snapshots of all sessions whose heartbeat is within
// timeout of now, most recently updated first.
func (s *Store) ListActive(now time.Time, timeout time.Duration) []domain.Session {
	cutoff := now.Add(-timeout)

	sessions := make([]domain.Session, 0)
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if !e.ended && !e.session.LastUpdatedAt.Before(cutoff) {
			sessions = append(sessions, e.session.Clone())
		}
		e.mu.Unlock()
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastUpdatedAt.After(sessions[j].LastUpdatedAt)
	})
	return sessions
}

// ExpireBefore evicts every session whose heartbeat is older than cutoff
// and returns their final snapshots. Staleness is re-checked under each
// session's lock, so a concurrent Update keeps its session alive.
func (s *Store) ExpireBefore(cutoff time.Time) []domain.Session {
	var expired []domain.Session
	for _, e := range s.snapshot() {
		e.mu.Lock()
		if !e.ended && e.session.LastUpdatedAt.Before(cutoff) {
			e.ended = true
			expired = append(expired, e.session.Clone())
		}
		e.mu.Unlock()
	}

	if len(expired) > 0 {
		s.mu.Lock()
		for _, sess := range expired {
			delete(s.entries, sess.ID)
		}
		s.mu.Unlock()
	}

	return expired
}

// Count returns the number of registered sessions
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// lookup fetches the live entry pointer for id, or nil
func (s *Store) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id]
}

// snapshot copies the entry map under the read lock so iteration happens
// without holding it
func (s *Store) snapshot() map[string]*entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out
}
