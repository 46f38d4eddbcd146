package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/ussdflow/pkg/domain"
)

// Merge returns hooks that call every non-nil hook of each set, in order.
func Merge(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range sets {
		if h.OnTransition != nil {
			prev, next := out.OnTransition, h.OnTransition
			out.OnTransition = func(ctx context.Context, e *domain.TransitionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				next(ctx, e)
			}
		}
		if h.OnInvalidInput != nil {
			prev, next := out.OnInvalidInput, h.OnInvalidInput
			out.OnInvalidInput = func(ctx context.Context, e *domain.InvalidInputEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				next(ctx, e)
			}
		}
		if h.OnTerminate != nil {
			prev, next := out.OnTerminate, h.OnTerminate
			out.OnTerminate = func(ctx context.Context, e *domain.TerminateEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				next(ctx, e)
			}
		}
		if h.OnBackendCall != nil {
			prev, next := out.OnBackendCall, h.OnBackendCall
			out.OnBackendCall = func(ctx context.Context, e *domain.BackendEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				next(ctx, e)
			}
		}
	}
	return out
}

// LogHooks returns hooks that log each event at info level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.InfoContext(ctx, "transition",
				"session_id", e.SessionID,
				"from", e.From,
				"to", e.To,
				"transition", e.Transition,
			)
		},
		OnInvalidInput: func(ctx context.Context, e *domain.InvalidInputEvent) {
			logger.InfoContext(ctx, "invalid_input",
				"session_id", e.SessionID,
				"state", e.State,
				"retries", e.Retries,
			)
		},
		OnTerminate: func(ctx context.Context, e *domain.TerminateEvent) {
			logger.InfoContext(ctx, "terminate",
				"session_id", e.SessionID,
				"state", e.State,
				"reason", e.Reason,
			)
		},
		OnBackendCall: func(ctx context.Context, e *domain.BackendEvent) {
			logger.InfoContext(ctx, "backend_call",
				"session_id", e.SessionID,
				"operation", e.Operation,
				"ok", e.Ok,
				"error_code", e.ErrorCode,
				"duration", e.Duration,
			)
		},
	}
}
