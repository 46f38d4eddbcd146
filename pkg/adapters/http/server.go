// Package http exposes the menu engine to USSD gateways over HTTP.
//
// Gateways POST one request per turn and receive a text/plain body prefixed
// with "CON " (expect more input) or "END " (close the session).
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/aretw0/ussdflow/internal/logging"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// DefaultPath is where gateways post turns.
	DefaultPath = "/ussd"
	// DefaultTurnTimeout bounds one turn, wallet calls included.
	DefaultTurnTimeout = 5 * time.Second

	maxBodyBytes = 16 << 10

	prefixContinue = "CON "
	prefixEnd      = "END "

	fallbackText = "Service temporarily unavailable. Please try again later."
)

// Engine processes one gateway turn.
type Engine interface {
	Handle(ctx context.Context, turn domain.Turn) (domain.Reply, error)
}

// EngineFunc adapts a function to Engine.
type EngineFunc func(ctx context.Context, turn domain.Turn) (domain.Reply, error)

// Handle calls f.
func (f EngineFunc) Handle(ctx context.Context, turn domain.Turn) (domain.Reply, error) {
	return f(ctx, turn)
}

// Server serves the gateway endpoint plus health and metrics.
type Server struct {
	engine      Engine
	logger      *slog.Logger
	path        string
	turnTimeout time.Duration
	maxInput    int
	health      func(context.Context) error
	metrics     http.Handler
	metricsPath string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithPath moves the gateway endpoint.
func WithPath(path string) Option {
	return func(s *Server) {
		s.path = path
	}
}

// WithTurnTimeout bounds each turn.
func WithTurnTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.turnTimeout = d
	}
}

// WithMaxInputBytes sets the accumulated input limit.
func WithMaxInputBytes(n int) Option {
	return func(s *Server) {
		s.maxInput = n
	}
}

// WithHealthCheck makes GET /health report 503 when check fails.
func WithHealthCheck(check func(context.Context) error) Option {
	return func(s *Server) {
		s.health = check
	}
}

// WithMetrics mounts a metrics handler (usually promhttp) at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		engine:      engine,
		logger:      logging.NewNop(),
		path:        DefaultPath,
		turnTimeout: DefaultTurnTimeout,
		maxInput:    DefaultMaxInputBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post(s.path, s.Turn)
	r.Get("/health", s.Health)
	if s.metrics != nil && s.metricsPath != "" {
		r.Method(http.MethodGet, s.metricsPath, s.metrics)
	}
	return r
}

type jsonTurn struct {
	SessionID   string `json:"session_id"`
	RawInput    string `json:"raw_input"`
	PhoneNumber string `json:"phone_number"`
}

// Turn handles POST /ussd.
func (s *Server) Turn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	turn, err := decodeTurn(r)
	if err != nil {
		s.logger.Warn("turn rejected", "err", err, "request_id", middleware.GetReqID(r.Context()))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if turn.SessionID, err = sanitizeID(turn.SessionID); err != nil {
		s.logger.Warn("turn rejected", "err", err)
		http.Error(w, "invalid session id", http.StatusBadRequest)
		return
	}
	if turn.RawInput, err = SanitizeInput(turn.RawInput, s.maxInput); err != nil {
		s.logger.Warn("turn rejected", "err", err, "session_id", turn.SessionID, "size", len(turn.RawInput))
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}
	if turn.Phone, err = SanitizeInput(turn.Phone, maxSessionIDBytes); err != nil {
		turn.Phone = ""
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.turnTimeout)
	defer cancel()

	reply, err := s.engine.Handle(ctx, turn)
	if err != nil {
		s.logger.Error("turn failed", "err", err, "session_id", turn.SessionID)
		if reply.Text == "" {
			reply.Text = fallbackText
		}
		reply.Continue = false
	}
	writeReply(w, reply)
}

func decodeTurn(r *http.Request) (domain.Turn, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var body jsonTurn
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return domain.Turn{}, err
		}
		return domain.Turn{SessionID: body.SessionID, RawInput: body.RawInput, Phone: body.PhoneNumber}, nil
	}

	if err := r.ParseForm(); err != nil {
		return domain.Turn{}, err
	}
	return domain.Turn{
		SessionID: r.PostForm.Get("sessionId"),
		RawInput:  r.PostForm.Get("text"),
		Phone:     r.PostForm.Get("phoneNumber"),
	}, nil
}

func writeReply(w http.ResponseWriter, reply domain.Reply) {
	prefix := prefixEnd
	if reply.Continue {
		prefix = prefixContinue
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(prefix + reply.Text))
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.logger.Warn("health check failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
	}
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
