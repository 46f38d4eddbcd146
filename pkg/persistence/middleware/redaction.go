package middleware

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/ports"
)

// RedactedValue replaces the values of masked keys.
const RedactedValue = "***"

// DefaultRedactPatterns covers the data keys the wallet flows write.
var DefaultRedactPatterns = []string{`^pin`, `hash$`, `recipient`}

type redactionMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewRedactionMiddleware creates a read-only view that masks data values of keys
// matching the patterns. It backs operator tooling; writes are refused.
func NewRedactionMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("redact pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &redactionMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *redactionMiddleware) Get(ctx context.Context, sessionID string) (domain.Session, error) {
	sess, err := m.next.Get(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	// Clone so a store handing out shared maps is never modified.
	masked := sess.Clone()
	maskMap(masked.Data, m.patterns)
	return masked, nil
}

func (m *redactionMiddleware) Put(context.Context, string, domain.Session, time.Duration) error {
	return fmt.Errorf("redacted store is read-only")
}

func (m *redactionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *redactionMiddleware) List(ctx context.Context) ([]string, error) {
	return list(ctx, m.next)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = RedactedValue
				break
			}
		}

		if subMap, ok := v.(map[string]any); ok && m[k] != RedactedValue {
			maskMap(subMap, patterns)
		}
	}
}
