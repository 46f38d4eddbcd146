package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/ussdflow/pkg/domain"
)

type entry struct {
	session   domain.Session
	expiresAt time.Time // zero means no expiry
}

// Store implements ports.SessionStore in memory.
// Safe for concurrent use. Expired sessions are invisible to Get and are
// reclaimed by Sweep.
type Store struct {
	data map[string]entry
	mu   sync.RWMutex
	now  func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put persists a copy of the session.
func (s *Store) Put(ctx context.Context, sessionID string, session domain.Session, ttl time.Duration) error {
	e := entry{session: session.Clone()}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = e
	return nil
}

// Get returns a copy so callers can't mutate stored sessions by reference.
func (s *Store) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[sessionID]
	if !ok || s.expired(e) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return e.session.Clone(), nil
}

// Delete removes the session.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns live sessions.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id, e := range s.data {
		if !s.expired(e) {
			sessions = append(sessions, id)
		}
	}
	return sessions, nil
}

// Sweep drops expired sessions and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.data {
		if s.expired(e) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}
