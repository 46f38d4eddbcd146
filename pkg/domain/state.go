package domain

import (
	"maps"
	"slices"
	"time"
)

// StateID identifies a declared state of the flow table.
type StateID string

// Session represents the record of one ongoing menu session.
// It is owned by the engine: only transition effects produce new values of it.
type Session struct {
	// ID is the opaque session identifier, stable for the session lifetime.
	ID string `json:"id"`

	// Language is the committed language code. Empty until a language
	// selection transition commits it.
	Language string `json:"language,omitempty"`

	// State is the current state identifier.
	State StateID `json:"state"`

	// Input is the most recent input token.
	Input string `json:"input,omitempty"`

	// History holds every token accepted so far, in order.
	History []string `json:"history,omitempty"`

	// Data holds flow-scoped working values (amount, recipient, pin hash...).
	Data map[string]any `json:"data,omitempty"`

	// Retries counts consecutive invalid inputs in the current state.
	Retries int `json:"retries,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the last-touched timestamp used for idle eviction.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a clean session positioned at the entry state.
func NewSession(id string, entry StateID, now time.Time) Session {
	return Session{
		ID:        id,
		State:     entry,
		Data:      make(map[string]any),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy of the session that shares no mutable memory with s.
func (s Session) Clone() Session {
	next := s
	next.History = slices.Clone(s.History)
	next.Data = cloneData(s.Data)
	return next
}

// WithData returns a copy of the session with key set to value.
func (s Session) WithData(key string, value any) Session {
	next := s.Clone()
	next.Data[key] = value
	return next
}

// WithoutData returns a copy of the session with the given keys removed.
func (s Session) WithoutData(keys ...string) Session {
	next := s.Clone()
	for _, k := range keys {
		delete(next.Data, k)
	}
	return next
}

// View returns a read-only view over the session.
func (s Session) View() View {
	return View{s: s.Clone()}
}

func cloneData(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			out[k] = cloneData(sub)
			continue
		}
		out[k] = v
	}
	return out
}

// View is a read-only accessor over a Session.
// Guards receive a View so they can never mutate the session they validate.
type View struct {
	s Session
}

func (v View) ID() string        { return v.s.ID }
func (v View) Language() string  { return v.s.Language }
func (v View) State() StateID    { return v.s.State }
func (v View) Input() string     { return v.s.Input }
func (v View) Retries() int      { return v.s.Retries }
func (v View) History() []string { return slices.Clone(v.s.History) }

// Get returns the data value stored under key.
func (v View) Get(key string) (any, bool) {
	val, ok := v.s.Data[key]
	return val, ok
}

// GetString returns the data value stored under key when it is a string.
func (v View) GetString(key string) string {
	s, _ := v.s.Data[key].(string)
	return s
}

// Data returns a copy of the session data.
func (v View) Data() map[string]any {
	return maps.Clone(v.s.Data)
}
