package ports

import (
	"context"
	"time"

	"github.com/aretw0/ussdflow/pkg/domain"
)

// SessionStore defines the interface for persisting session records.
// Implementations need at-least-once durability within the TTL window and
// last-writer-wins semantics; no cross-session ordering is required.
type SessionStore interface {
	// Get retrieves the session for a given ID.
	// Returns domain.ErrSessionNotFound if the session does not exist or expired.
	Get(ctx context.Context, sessionID string) (domain.Session, error)

	// Put persists the session, expiring it after ttl (zero means no expiry).
	Put(ctx context.Context, sessionID string, session domain.Session, ttl time.Duration) error

	// Delete removes the session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error
}

// Lister is implemented by stores that can enumerate live sessions.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}
