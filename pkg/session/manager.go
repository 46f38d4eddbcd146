package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/ussdflow/internal/logging"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/ports"
)

// DefaultLockTTL bounds how long a crashed replica can block a session.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager serializes turns per session ID and mediates store access.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL sets the expiry of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.lockTTL = ttl
		}
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		lockTTL: DefaultLockTTL,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// Tx is the store handle for one session while its lock is held.
type Tx struct {
	m  *Manager
	id string
}

// Get loads the session. A missing session yields domain.ErrSessionNotFound;
// any other failure is wrapped with domain.ErrStoreUnavailable.
func (tx Tx) Get(ctx context.Context) (domain.Session, error) {
	sess, err := tx.m.store.Get(ctx, tx.id)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.Session{}, err
		}
		return domain.Session{}, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return sess, nil
}

// Put persists the session with ttl.
func (tx Tx) Put(ctx context.Context, sess domain.Session, ttl time.Duration) error {
	if err := tx.m.store.Put(ctx, tx.id, sess, ttl); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes the session.
func (tx Tx) Delete(ctx context.Context) error {
	if err := tx.m.store.Delete(ctx, tx.id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// WithLock executes fn while holding the lock for the session.
// Turns of the same session never interleave; different sessions run in parallel.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context, Tx) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		defer func() {
			// Release with a fresh context so a timed-out turn still frees the lock.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			defer cancel()
			if err := unlock(releaseCtx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx, Tx{m: m, id: sessionID})
}

// Load retrieves an existing session under its lock.
func (m *Manager) Load(ctx context.Context, sessionID string) (domain.Session, error) {
	var sess domain.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context, tx Tx) error {
		var err error
		sess, err = tx.Get(ctx)
		return err
	})
	return sess, err
}

// Delete removes the session under its lock.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context, tx Tx) error {
		return tx.Delete(ctx)
	})
}

// List delegates to the store when it supports listing.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	lister, ok := m.store.(ports.Lister)
	if !ok {
		return nil, fmt.Errorf("session store does not support listing")
	}
	return lister.List(ctx)
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}
