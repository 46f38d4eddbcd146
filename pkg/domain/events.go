package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTransition   EventType = "transition"
	EventInvalidInput EventType = "invalid_input"
	EventTerminate    EventType = "terminate"
	EventBackendCall  EventType = "backend_call"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// TransitionEvent is emitted when a transition is taken.
type TransitionEvent struct {
	EventBase
	From       StateID `json:"from"`
	To         StateID `json:"to"`
	Transition string  `json:"transition"`
}

// InvalidInputEvent is emitted when no transition matched the input.
type InvalidInputEvent struct {
	EventBase
	State   StateID `json:"state"`
	Retries int     `json:"retries"`
}

// TerminateEvent is emitted when a session reaches a terminal state.
type TerminateEvent struct {
	EventBase
	State  StateID `json:"state"`
	Reason string  `json:"reason"`
}

// BackendEvent is emitted after every wallet backend call.
type BackendEvent struct {
	EventBase
	Operation WalletOperation `json:"operation"`
	Ok        bool            `json:"ok"`
	ErrorCode string          `json:"error_code,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTransition   func(context.Context, *TransitionEvent)
	OnInvalidInput func(context.Context, *InvalidInputEvent)
	OnTerminate    func(context.Context, *TerminateEvent)
	OnBackendCall  func(context.Context, *BackendEvent)
}

// Termination reasons reported in TerminateEvent.
const (
	ReasonCompleted   = "completed"
	ReasonRetryLimit  = "retry_limit"
	ReasonSystemError = "system_error"
)
