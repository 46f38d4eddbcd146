package runtime

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/guard"
)

// Message identifies a template by namespace and key.
type Message struct {
	Namespace string
	Key       string
}

func (m Message) String() string {
	return m.Namespace + "." + m.Key
}

// IsZero reports whether the message is unset.
func (m Message) IsZero() bool {
	return m.Namespace == "" && m.Key == ""
}

// Effect derives the next session from a clone of the current one and the validated token.
// Effects are the only writers of session data.
type Effect func(sess domain.Session, input string) domain.Session

// Invoke describes a wallet backend call made after a transition's effect.
type Invoke struct {
	Operation domain.WalletOperation

	// Request builds the backend request from the post-effect session.
	Request func(v domain.View) domain.WalletRequest

	// Apply folds a successful result into the session. An error routes to OnFailure.
	Apply func(sess domain.Session, result map[string]any) (domain.Session, error)

	// Notify is rendered and sent to the caller's phone after a successful call.
	Notify Message

	// SelectNotify, when set, picks the receipt from the post-call session instead of Notify.
	SelectNotify func(v domain.View) Message
}

// Transition is one guarded edge of the table.
type Transition struct {
	// Name labels the transition in events and logs.
	Name string

	// Guards must all pass for the transition to be taken.
	Guards []guard.Guard

	Effect Effect
	Invoke *Invoke

	To domain.StateID

	// OnFailure is the target when Invoke fails or the backend refuses.
	OnFailure domain.StateID
}

// StateDef declares one state of the machine.
type StateDef struct {
	// Message is the prompt rendered when the state is entered.
	Message Message

	// Select, when set, picks the message from the session instead of Message.
	Select func(v domain.View) Message

	// Values adds computed named placeholders on top of the session data.
	Values func(v domain.View) map[string]any

	// Transitions are evaluated in declared order.
	Transitions []Transition

	Terminal bool

	// Sensitive states take secrets (PINs): their tokens are masked in
	// the stored history and never logged.
	Sensitive bool

	// TTL overrides the engine's idle timeout for sessions parked in this state.
	TTL time.Duration
}

// Table is the declarative flow definition.
type Table struct {
	Entry  domain.StateID
	States map[domain.StateID]StateDef

	// Invalid is the error line rendered above the current prompt on invalid input.
	Invalid Message

	// RetryLimit is the terminal message once the invalid-input budget is spent.
	RetryLimit Message

	// SystemError is the safe message for store and configuration failures.
	SystemError Message
}

// message resolves the prompt of def for the session.
func (def StateDef) message(v domain.View) Message {
	if def.Select != nil {
		if m := def.Select(v); !m.IsZero() {
			return m
		}
	}
	return def.Message
}

// Validate checks that the table is closed: every target is declared and
// every state has a prompt.
func (t Table) Validate() error {
	var errs []error

	if _, ok := t.States[t.Entry]; !ok {
		errs = append(errs, fmt.Errorf("entry state %q is not declared", t.Entry))
	}
	for name, m := range map[string]Message{"invalid": t.Invalid, "retry limit": t.RetryLimit, "system error": t.SystemError} {
		if m.IsZero() {
			errs = append(errs, fmt.Errorf("%s message is not set", name))
		}
	}

	for _, id := range t.StateIDs() {
		def := t.States[id]
		if def.Message.IsZero() {
			errs = append(errs, fmt.Errorf("state %q has no message", id))
		}
		if def.Terminal && len(def.Transitions) > 0 {
			errs = append(errs, fmt.Errorf("terminal state %q declares transitions", id))
		}
		if !def.Terminal && len(def.Transitions) == 0 {
			errs = append(errs, fmt.Errorf("state %q is a dead end: not terminal and no transitions", id))
		}
		for i, tr := range def.Transitions {
			if _, ok := t.States[tr.To]; !ok {
				errs = append(errs, fmt.Errorf("state %q transition %d targets undeclared state %q", id, i, tr.To))
			}
			if tr.Invoke == nil {
				continue
			}
			if tr.Invoke.Request == nil {
				errs = append(errs, fmt.Errorf("state %q transition %d invokes %q without a request builder", id, i, tr.Invoke.Operation))
			}
			if _, ok := t.States[tr.OnFailure]; !ok {
				errs = append(errs, fmt.Errorf("state %q transition %d invokes %q without a declared failure state", id, i, tr.Invoke.Operation))
			}
		}
	}

	return errors.Join(errs...)
}

// StateIDs returns the declared states in lexical order.
func (t Table) StateIDs() []domain.StateID {
	ids := make([]domain.StateID, 0, len(t.States))
	for id := range t.States {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Messages returns every statically declared message of the table.
func (t Table) Messages() []Message {
	msgs := []Message{t.Invalid, t.RetryLimit, t.SystemError}
	for _, id := range t.StateIDs() {
		def := t.States[id]
		msgs = append(msgs, def.Message)
		for _, tr := range def.Transitions {
			if tr.Invoke != nil && !tr.Invoke.Notify.IsZero() {
				msgs = append(msgs, tr.Invoke.Notify)
			}
		}
	}
	return msgs
}
