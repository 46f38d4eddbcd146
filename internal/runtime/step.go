package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/guard"
	"github.com/aretw0/ussdflow/pkg/render"
)

type outcomeKind int

const (
	kindPrompt outcomeKind = iota
	kindTransition
	kindInvalid
	kindRetryLimit
)

// outcome is the pure result of evaluating one turn, before rendering and persistence.
type outcome struct {
	kind       outcomeKind
	next       domain.Session
	transition string
	terminal   bool
	reason     string
	calls      []domain.BackendEvent
	receipt    *notification
	err        error
}

type notification struct {
	phone   string
	message Message
	lang    string
	values  map[string]any
}

// step evaluates the transition table for one turn.
func (e *Engine) step(ctx context.Context, current domain.Session, created bool, raw string) outcome {
	now := e.now()
	def := e.table.States[current.State]
	token := domain.LatestToken(raw, current.History)

	// First dial: render the entry prompt without consuming input.
	if created && token == "" {
		next := current.Clone()
		next.UpdatedAt = now
		return outcome{kind: kindPrompt, next: next}
	}

	// A resent request re-renders where the session stands instead of consuming input twice.
	if !created && domain.IsReplay(raw, current.History) {
		next := current.Clone()
		next.UpdatedAt = now
		e.logger.DebugContext(ctx, "replayed input", "session_id", current.ID, "state", current.State)
		return outcome{kind: kindPrompt, next: next}
	}

	if current.Retries >= e.maxRetries {
		next := current.Clone()
		next.UpdatedAt = now
		e.logger.InfoContext(ctx, "retry limit reached",
			"session_id", current.ID,
			"state", current.State,
			"retries", current.Retries,
		)
		return outcome{kind: kindRetryLimit, next: next, terminal: true, reason: domain.ReasonRetryLimit}
	}

	view := current.View()
	recorded := token
	if def.Sensitive {
		recorded = domain.MaskedToken
	}

	for _, tr := range def.Transitions {
		if !passes(tr.Guards, view, token) {
			continue
		}

		next := current.Clone()
		if tr.Effect != nil {
			next = tr.Effect(next, token)
		}
		next.Input = recorded
		next.History = append(next.History, recorded)
		next.Retries = 0
		next.UpdatedAt = now

		out := outcome{kind: kindTransition, transition: tr.Name}
		target := tr.To
		if tr.Invoke != nil {
			var ok bool
			next, ok = e.invoke(ctx, next, tr.Invoke, &out)
			if err := ctx.Err(); err != nil {
				out.err = err
				return out
			}
			if !ok {
				target = tr.OnFailure
			}
		}

		next.State = target
		out.next = next
		if e.table.States[target].Terminal {
			out.terminal = true
			out.reason = domain.ReasonCompleted
		}
		if out.transition == "" {
			out.transition = fmt.Sprintf("%s->%s", current.State, target)
		}
		return out
	}

	next := current.Clone()
	next.Input = recorded
	next.History = append(next.History, recorded)
	next.Retries++
	next.UpdatedAt = now
	return outcome{kind: kindInvalid, next: next}
}

// passes evaluates all guards, recovering panics as failures.
func passes(guards []guard.Guard, v domain.View, input string) bool {
	for _, g := range guards {
		if !guard.Eval(g, v, input) {
			return false
		}
	}
	return true
}

// invoke calls the wallet backend. It reports false when the call failed or was refused.
func (e *Engine) invoke(ctx context.Context, sess domain.Session, inv *Invoke, out *outcome) (domain.Session, bool) {
	req := inv.Request(sess.View())
	req.Operation = inv.Operation
	if req.AccountRef == "" {
		req.AccountRef, _ = sess.Data[DataAccountRef].(string)
	}
	if req.Operation == domain.WalletTransfer && req.IdempotencyKey == "" {
		// Stable across gateway retries of the same turn.
		req.IdempotencyKey = fmt.Sprintf("%s:%d", sess.ID, len(sess.History))
	}

	start := e.now()
	var (
		resp domain.WalletResponse
		err  error
	)
	if e.wallet == nil {
		err = errors.New("no wallet backend configured")
	} else {
		resp, err = e.wallet.Do(ctx, req)
	}

	call := domain.BackendEvent{Operation: req.Operation, Ok: err == nil && resp.Ok, Duration: e.now().Sub(start)}
	fail := func(code string) (domain.Session, bool) {
		call.Ok = false
		call.ErrorCode = code
		out.calls = append(out.calls, call)
		return sess.WithData(DataErrorCode, code), false
	}

	if err != nil {
		e.logger.WarnContext(ctx, "wallet call failed",
			"session_id", sess.ID,
			"operation", req.Operation,
			"err", err,
		)
		return fail(domain.WalletErrUnavailable)
	}
	if !resp.Ok {
		code := resp.ErrorCode
		if code == "" {
			code = domain.WalletErrUnavailable
		}
		return fail(code)
	}

	next := sess.WithoutData(DataErrorCode)
	if inv.Apply != nil {
		applied, err := inv.Apply(next, resp.Result)
		if err != nil {
			e.logger.WarnContext(ctx, "wallet result rejected",
				"session_id", sess.ID,
				"operation", req.Operation,
				"err", err,
			)
			return fail(domain.WalletErrUnavailable)
		}
		next = applied
	}
	out.calls = append(out.calls, call)

	if !inv.Notify.IsZero() {
		receipt := inv.Notify
		if inv.SelectNotify != nil {
			if m := inv.SelectNotify(next.View()); !m.IsZero() {
				receipt = m
			}
		}
		if phone, _ := next.Data[DataAccountRef].(string); phone != "" {
			out.receipt = &notification{
				phone:   phone,
				message: receipt,
				lang:    next.Language,
				values:  e.values(StateDef{}, next),
			}
		}
	}
	return next, true
}

// render produces the outgoing text for an outcome.
func (e *Engine) render(out outcome) (string, error) {
	lang := e.language(out.next)
	view := out.next.View()
	def := e.table.States[out.next.State]

	switch out.kind {
	case kindRetryLimit:
		return e.renderMessage(lang, e.table.RetryLimit, e.values(def, out.next))
	case kindInvalid:
		line, err := e.renderMessage(lang, e.table.Invalid, e.values(def, out.next))
		if err != nil {
			return "", err
		}
		prompt, err := e.renderMessage(lang, def.message(view), e.values(def, out.next))
		if err != nil {
			return "", err
		}
		return line + "\n" + prompt, nil
	default:
		return e.renderMessage(lang, def.message(view), e.values(def, out.next))
	}
}

func (e *Engine) renderMessage(lang string, m Message, values map[string]any) (string, error) {
	text, err := e.renderer.Render(lang, m.Namespace, m.Key, render.Named(values))
	if err != nil {
		return "", fmt.Errorf("render %s: %w", m, err)
	}
	return text, nil
}

// values merges session data with computed per-state values.
func (e *Engine) values(def StateDef, sess domain.Session) map[string]any {
	values := make(map[string]any, len(sess.Data)+4)
	for k, v := range sess.Data {
		values[k] = v
	}
	if def.Values != nil {
		for k, v := range def.Values(sess.View()) {
			values[k] = v
		}
	}
	values["retries"] = sess.Retries
	values["attempts_left"] = max(e.maxRetries-sess.Retries, 0)
	return values
}

func (e *Engine) language(sess domain.Session) string {
	if sess.Language != "" {
		return sess.Language
	}
	return e.defaultLanguage
}

// notify renders and sends a receipt. Failures are logged, never surfaced.
func (e *Engine) notify(ctx context.Context, sessionID string, n *notification) {
	if e.notifier == nil {
		return
	}
	lang := n.lang
	if lang == "" {
		lang = e.defaultLanguage
	}
	text, err := e.renderMessage(lang, n.message, n.values)
	if err != nil {
		e.logger.ErrorContext(ctx, "receipt render failed", "session_id", sessionID, "err", err)
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.notifier.Notify(sendCtx, n.phone, text); err != nil {
		e.logger.WarnContext(ctx, "receipt delivery failed", "session_id", sessionID, "err", err)
	}
}

// Prompt renders the prompt of a state with the given session, for previews and tooling.
func (e *Engine) Prompt(sess domain.Session) (string, error) {
	def, ok := e.table.States[sess.State]
	if !ok {
		return "", fmt.Errorf("%w: undeclared state %q", domain.ErrCorruptSession, sess.State)
	}
	return e.renderMessage(e.language(sess), def.message(sess.View()), e.values(def, sess))
}

// States lists the declared state IDs.
func (e *Engine) States() []domain.StateID {
	return e.table.StateIDs()
}

// Table returns the flow definition the engine runs.
func (e *Engine) Table() Table {
	return e.table
}
