// Package file stores sessions as JSON files, for single-node development
// deployments where the operator commands must see sessions across processes.
package file

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/ussdflow/pkg/domain"
)

// DefaultDir is used when New is given an empty directory.
var DefaultDir = filepath.Join(".ussdflow", "sessions")

const ext = ".json"

type record struct {
	Session   domain.Session `json:"session"`
	ExpiresAt time.Time      `json:"expires_at,omitzero"`
}

// Store implements ports.SessionStore on the local filesystem.
// File names are the base64url-encoded session IDs, so gateway IDs never
// escape the directory. Writes are atomic (temp file, fsync, rename).
type Store struct {
	dir string
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a store rooted at dir.
func New(dir string, opts ...Option) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(sessionID string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(sessionID))+ext)
}

// Put persists the session atomically.
func (s *Store) Put(ctx context.Context, sessionID string, session domain.Session, ttl time.Duration) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("ensure session directory: %w", err)
	}

	rec := record{Session: session}
	if ttl > 0 {
		rec.ExpiresAt = s.now().Add(ttl)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	// Same directory, so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(s.dir, "tmp-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(sessionID)); err != nil {
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// Get loads the session. Expired records are removed and reported as not found.
func (s *Store) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	rec, err := s.read(s.path(sessionID))
	if err != nil {
		return domain.Session{}, err
	}
	if s.expired(rec) {
		_ = os.Remove(s.path(sessionID))
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return rec.Session, nil
}

func (s *Store) read(path string) (record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return record{}, domain.ErrSessionNotFound
		}
		return record{}, fmt.Errorf("read session file: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return record{}, fmt.Errorf("%w: %w", domain.ErrCorruptSession, err)
	}
	return rec, nil
}

// Delete removes the session file.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	err := os.Remove(s.path(sessionID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete session file: %w", err)
	}
	return nil
}

// List returns the IDs of live sessions.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ext || strings.HasPrefix(name, "tmp-") {
			continue
		}
		id, err := base64.RawURLEncoding.DecodeString(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		rec, err := s.read(filepath.Join(s.dir, name))
		if err != nil || s.expired(rec) {
			continue
		}
		sessions = append(sessions, string(id))
	}
	return sessions, nil
}

func (s *Store) expired(rec record) bool {
	return !rec.ExpiresAt.IsZero() && !s.now().Before(rec.ExpiresAt)
}
