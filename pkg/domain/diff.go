package domain

import (
	"reflect"
)

// SessionDiff represents the changes between two session snapshots.
// It is designed to be serialized to JSON for debug logs and audit trails.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	State    *StateID `json:"state,omitempty"`
	Language *string  `json:"language,omitempty"`
	Retries  *int     `json:"retries,omitempty"`

	// Data contains only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Data map[string]any `json:"data,omitempty"`

	// Appended contains tokens appended to the input history.
	Appended []string `json:"appended,omitempty"`
}

// Diff calculates the difference between oldSession and newSession.
// If oldSession is nil, it returns a diff representing the entire newSession.
// It returns nil when nothing changed.
func Diff(oldSession, newSession *Session) *SessionDiff {
	if newSession == nil {
		return nil
	}

	diff := &SessionDiff{SessionID: newSession.ID}

	if oldSession == nil || oldSession.State != newSession.State {
		diff.State = &newSession.State
	}
	if oldSession == nil || oldSession.Language != newSession.Language {
		if oldSession != nil || newSession.Language != "" {
			diff.Language = &newSession.Language
		}
	}
	if oldSession != nil && oldSession.Retries != newSession.Retries {
		diff.Retries = &newSession.Retries
	}

	diff.Data = diffData(oldSession, newSession)
	diff.Appended = diffHistory(oldSession, newSession)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffData(old *Session, new *Session) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Data {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	for k, newVal := range new.Data {
		oldVal, exists := old.Data[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	for k := range old.Data {
		if _, exists := new.Data[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes append-only history.
func diffHistory(old *Session, new *Session) []string {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return new.History
	}
	if len(new.History) > len(old.History) {
		return new.History[len(old.History):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.State == nil &&
		d.Language == nil &&
		d.Retries == nil &&
		len(d.Data) == 0 &&
		len(d.Appended) == 0
}

// Redact returns a copy of the diff with the given data keys masked.
func (d *SessionDiff) Redact(keys ...string) *SessionDiff {
	if d == nil {
		return nil
	}
	out := *d
	if d.Data != nil {
		out.Data = make(map[string]any, len(d.Data))
		for k, v := range d.Data {
			out.Data[k] = v
		}
		for _, k := range keys {
			if _, ok := out.Data[k]; ok && out.Data[k] != nil {
				out.Data[k] = "***"
			}
		}
	}
	return &out
}
