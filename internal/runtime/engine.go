package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/ussdflow/internal/logging"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/ports"
	"github.com/aretw0/ussdflow/pkg/render"
	"github.com/aretw0/ussdflow/pkg/session"
)

const (
	// DefaultMaxRetries is the invalid-input budget per state.
	DefaultMaxRetries = 3
	// DefaultTTL is the idle timeout of a parked session.
	DefaultTTL = 3 * time.Minute

	// DataAccountRef holds the caller's phone number, used as wallet account reference.
	DataAccountRef = "account_ref"
	// DataErrorCode holds the code of the last failed backend call.
	DataErrorCode = "error_code"

	unavailableText = "Service temporarily unavailable. Please try again later."
)

// Engine is the session state machine.
// It is safe for concurrent use; turns of one session are serialized by the session manager.
type Engine struct {
	table    Table
	renderer *render.Renderer
	sessions *session.Manager

	defaultLanguage string
	maxRetries      int
	defaultTTL      time.Duration

	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	wallet   ports.Wallet
	notifier ports.Notifier
	now      func() time.Time
	observe  func(time.Duration, string)

	// optErrs collects option values that could not be applied.
	optErrs []error
}

// Option configures the Engine.
type Option func(*Engine)

// WithDefaultLanguage sets the language used before one is committed.
// It defaults to the renderer's fallback language.
func WithDefaultLanguage(lang string) Option {
	return func(e *Engine) {
		e.defaultLanguage = lang
	}
}

// WithMaxRetries sets how many consecutive invalid inputs a state tolerates.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithDefaultTTL sets the idle timeout for states without their own TTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.defaultTTL = ttl
		}
	}
}

// WithStateTTL overrides the idle timeout of individual states.
// Naming a state the table does not declare makes New fail.
func WithStateTTL(ttls map[domain.StateID]time.Duration) Option {
	return func(e *Engine) {
		for id, ttl := range ttls {
			def, ok := e.table.States[id]
			if !ok {
				e.optErrs = append(e.optErrs, fmt.Errorf("state ttl for undeclared state %q", id))
				continue
			}
			if ttl > 0 {
				def.TTL = ttl
				e.table.States[id] = def
			}
		}
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger configures a logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithWallet sets the backend used by invoking transitions.
func WithWallet(w ports.Wallet) Option {
	return func(e *Engine) {
		e.wallet = w
	}
}

// WithNotifier sets the out-of-band channel for receipts.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithTurnObserver receives the latency and outcome ("continue", "end", "error") of every turn.
func WithTurnObserver(fn func(time.Duration, string)) Option {
	return func(e *Engine) {
		e.observe = fn
	}
}

// New creates an engine over a validated table.
// Every statically declared message must resolve for the default language.
func New(table Table, renderer *render.Renderer, sessions *session.Manager, opts ...Option) (*Engine, error) {
	if renderer == nil || sessions == nil {
		return nil, errors.New("runtime: renderer and session manager are required")
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow table: %w", err)
	}

	// Copy the state map so options and callers never share it.
	states := make(map[domain.StateID]StateDef, len(table.States))
	for id, def := range table.States {
		states[id] = def
	}
	table.States = states

	e := &Engine{
		table:           table,
		renderer:        renderer,
		sessions:        sessions,
		defaultLanguage: renderer.Fallback(),
		maxRetries:      DefaultMaxRetries,
		defaultTTL:      DefaultTTL,
		logger:          logging.NewNop(),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := errors.Join(e.optErrs...); err != nil {
		return nil, fmt.Errorf("invalid engine options: %w", err)
	}

	var errs []error
	for _, m := range table.Messages() {
		if _, err := renderer.Resolve(e.defaultLanguage, m.Namespace, m.Key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("flow table references missing templates: %w", err)
	}

	return e, nil
}

// MaxRetries returns the configured invalid-input budget.
func (e *Engine) MaxRetries() int {
	return e.maxRetries
}

// ProcessTurn handles one inbound turn identified by session ID and raw gateway input.
func (e *Engine) ProcessTurn(ctx context.Context, sessionID, rawInput string) (domain.Reply, error) {
	return e.Handle(ctx, domain.Turn{SessionID: sessionID, RawInput: rawInput})
}

// Handle processes a turn: load, evaluate, render, persist.
//
// Store and configuration failures are returned alongside a reply carrying a
// safe message with Continue=false; nothing is persisted for that turn.
func (e *Engine) Handle(ctx context.Context, turn domain.Turn) (domain.Reply, error) {
	start := e.now()

	var (
		reply   domain.Reply
		receipt *notification
		lang    = e.defaultLanguage
	)
	err := e.sessions.WithLock(ctx, turn.SessionID, func(ctx context.Context, tx session.Tx) error {
		current, created, err := e.load(ctx, tx, turn)
		if err != nil {
			return err
		}
		if current.Language != "" {
			lang = current.Language
		}

		out := e.step(ctx, current, created, turn.RawInput)
		if out.err != nil {
			return out.err
		}
		if out.next.Language != "" {
			lang = out.next.Language
		}

		text, err := e.render(out)
		if err != nil {
			return err
		}

		// A cancelled turn must leave the previous record untouched.
		if err := ctx.Err(); err != nil {
			return err
		}

		if out.terminal {
			if err := tx.Delete(ctx); err != nil {
				return err
			}
		} else {
			if err := tx.Put(ctx, out.next, e.ttl(out.next.State)); err != nil {
				return err
			}
		}

		e.afterCommit(ctx, current, created, out)
		receipt = out.receipt
		reply = domain.Reply{Text: text, Continue: !out.terminal}
		return nil
	})

	if err != nil {
		e.logger.ErrorContext(ctx, "turn failed", "session_id", turn.SessionID, "err", err)
		e.observeTurn(start, "error")
		return e.systemReply(lang), err
	}

	if receipt != nil {
		e.notify(ctx, turn.SessionID, receipt)
	}

	outcome := "continue"
	if !reply.Continue {
		outcome = "end"
	}
	e.observeTurn(start, outcome)
	return reply, nil
}

// load fetches the session or creates it in the entry state.
func (e *Engine) load(ctx context.Context, tx session.Tx, turn domain.Turn) (domain.Session, bool, error) {
	sess, err := tx.Get(ctx)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		// Fresh dial.
	case err != nil:
		return domain.Session{}, false, err
	default:
		def, ok := e.table.States[sess.State]
		if !ok {
			return domain.Session{}, false, fmt.Errorf("%w: session %s is in undeclared state %q", domain.ErrCorruptSession, turn.SessionID, sess.State)
		}
		if !def.Terminal {
			if sess.Data == nil {
				sess.Data = make(map[string]any)
			}
			return sess, false, nil
		}
		// A terminal record left behind by a failed delete is a finished session.
	}

	sess = domain.NewSession(turn.SessionID, e.table.Entry, e.now())
	if turn.Phone != "" {
		sess.Data[DataAccountRef] = turn.Phone
	}
	return sess, true, nil
}

func (e *Engine) ttl(id domain.StateID) time.Duration {
	if def := e.table.States[id]; def.TTL > 0 {
		return def.TTL
	}
	return e.defaultTTL
}

func (e *Engine) systemReply(lang string) domain.Reply {
	m := e.table.SystemError
	text, err := e.renderer.Render(lang, m.Namespace, m.Key, render.Values{})
	if err != nil {
		text = unavailableText
	}
	return domain.Reply{Text: text, Continue: false}
}

func (e *Engine) observeTurn(start time.Time, outcome string) {
	if e.observe != nil {
		e.observe(e.now().Sub(start), outcome)
	}
}

// afterCommit fires hooks and logs the session delta once the turn is durable.
func (e *Engine) afterCommit(ctx context.Context, prev domain.Session, created bool, out outcome) {
	base := func(t domain.EventType) domain.EventBase {
		return domain.EventBase{Timestamp: e.now(), Type: t, SessionID: out.next.ID}
	}

	for _, call := range out.calls {
		if e.hooks.OnBackendCall != nil {
			ev := call
			ev.EventBase = base(domain.EventBackendCall)
			e.hooks.OnBackendCall(ctx, &ev)
		}
	}

	switch out.kind {
	case kindInvalid:
		if e.hooks.OnInvalidInput != nil {
			e.hooks.OnInvalidInput(ctx, &domain.InvalidInputEvent{
				EventBase: base(domain.EventInvalidInput),
				State:     out.next.State,
				Retries:   out.next.Retries,
			})
		}
	case kindTransition:
		if e.hooks.OnTransition != nil {
			e.hooks.OnTransition(ctx, &domain.TransitionEvent{
				EventBase:  base(domain.EventTransition),
				From:       prev.State,
				To:         out.next.State,
				Transition: out.transition,
			})
		}
	}

	if out.terminal && e.hooks.OnTerminate != nil {
		e.hooks.OnTerminate(ctx, &domain.TerminateEvent{
			EventBase: base(domain.EventTerminate),
			State:     out.next.State,
			Reason:    out.reason,
		})
	}

	if e.logger.Enabled(ctx, slog.LevelDebug) {
		old := &prev
		if created {
			old = nil
		}
		diff := domain.Diff(old, &out.next).Redact(sensitiveKeys...)
		e.logger.DebugContext(ctx, "session updated",
			"session_id", out.next.ID,
			"state", out.next.State,
			"terminal", out.terminal,
			"diff", diff,
		)
	}
}

// sensitiveKeys are never logged in clear.
var sensitiveKeys = []string{"pin_hash", "recipient", DataAccountRef}
