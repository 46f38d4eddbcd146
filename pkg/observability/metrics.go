package observability

import (
	"context"
	"time"

	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ussdflow"

// Metrics holds the prometheus collectors fed by the engine hooks.
type Metrics struct {
	Transitions   *prometheus.CounterVec
	InvalidInputs *prometheus.CounterVec
	Terminations  *prometheus.CounterVec
	BackendCalls  *prometheus.CounterVec
	BackendTime   *prometheus.HistogramVec
	TurnDuration  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Transitions taken, by source and target state.",
		}, []string{"from", "to"}),
		InvalidInputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_inputs_total",
			Help:      "Inputs that matched no transition, by state.",
		}, []string{"state"}),
		Terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_terminated_total",
			Help:      "Sessions ended, by final state and reason.",
		}, []string{"state", "reason"}),
		BackendCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_calls_total",
			Help:      "Wallet backend calls, by operation and error code.",
		}, []string{"operation", "code"}),
		BackendTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_call_duration_seconds",
			Help:      "Duration of wallet backend calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Latency of a full turn, load to persist.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.Transitions, m.InvalidInputs, m.Terminations, m.BackendCalls, m.BackendTime, m.TurnDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks recording every event into the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			m.Transitions.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
		OnInvalidInput: func(_ context.Context, e *domain.InvalidInputEvent) {
			m.InvalidInputs.WithLabelValues(string(e.State)).Inc()
		},
		OnTerminate: func(_ context.Context, e *domain.TerminateEvent) {
			m.Terminations.WithLabelValues(string(e.State), e.Reason).Inc()
		},
		OnBackendCall: func(_ context.Context, e *domain.BackendEvent) {
			code := e.ErrorCode
			if e.Ok {
				code = "ok"
			}
			m.BackendCalls.WithLabelValues(string(e.Operation), code).Inc()
			m.BackendTime.WithLabelValues(string(e.Operation)).Observe(e.Duration.Seconds())
		},
	}
}

// ObserveTurn records the latency of one turn.
// outcome is "continue", "end" or "error".
func (m *Metrics) ObserveTurn(d time.Duration, outcome string) {
	m.TurnDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
