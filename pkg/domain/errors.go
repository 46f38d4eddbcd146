package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrStoreUnavailable is returned when the session store collaborator fails.
// The turn is not consumed and nothing is persisted.
var ErrStoreUnavailable = errors.New("session store unavailable")

// ErrCorruptSession is returned when a persisted session references a state
// the flow table does not declare.
var ErrCorruptSession = errors.New("corrupt session")

// ErrInvalidInput marks a turn whose input matched no transition.
// It is recovered inside the engine and never reaches the transport.
var ErrInvalidInput = errors.New("invalid input")

// ErrRetryLimitExceeded marks a session terminated after too many invalid inputs.
var ErrRetryLimitExceeded = errors.New("retry limit exceeded")
