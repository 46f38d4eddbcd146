package ussdflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/ussdflow/internal/flows"
	"github.com/aretw0/ussdflow/internal/logging"
	"github.com/aretw0/ussdflow/internal/runtime"
	"github.com/aretw0/ussdflow/pkg/adapters/memory"
	"github.com/aretw0/ussdflow/pkg/catalog"
	"github.com/aretw0/ussdflow/pkg/domain"
	"github.com/aretw0/ussdflow/pkg/formatter"
	"github.com/aretw0/ussdflow/pkg/guard"
	"github.com/aretw0/ussdflow/pkg/ports"
	"github.com/aretw0/ussdflow/pkg/render"
	"github.com/aretw0/ussdflow/pkg/session"
)

// Version is the release version, overridden at build time with -ldflags.
var Version = "0.1.0-dev"

// Service is the high-level entry point: the wallet menu flows wired to a
// catalog, a renderer, a session store and a wallet backend.
type Service struct {
	engine   *runtime.Engine
	sessions *session.Manager
	renderer *render.Renderer
	catalog  *catalog.Catalog
	langs    guard.LanguageSet

	store      ports.SessionStore
	locker     ports.DistributedLocker
	lockTTL    time.Duration
	wallet     ports.Wallet
	notifier   ports.Notifier
	formatters []formatter.Option
	hooks      domain.LifecycleHooks
	logger     *slog.Logger
	observe    func(time.Duration, string)

	enabled            []string
	fallback           string
	fallbackSelectable bool
	flow               flows.Config
	maxRetries         int
	defaultTTL         time.Duration
	stateTTL           map[domain.StateID]time.Duration
}

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithStore sets the session store. Defaults to an in-memory store.
func WithStore(store ports.SessionStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLocker enables distributed per-session locking across replicas.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithCatalog replaces the embedded locale catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithLanguages sets the selectable languages and the fallback language.
// Whether the fallback is also offered as a menu option is controlled separately.
func WithLanguages(enabled []string, fallback string, fallbackSelectable bool) Option {
	return func(s *Service) {
		s.enabled = enabled
		s.fallback = fallback
		s.fallbackSelectable = fallbackSelectable
	}
}

// WithAmountLimits bounds transfer amounts. A zero max is unbounded.
func WithAmountLimits(min, max float64) Option {
	return func(s *Service) {
		s.flow.MinAmount = min
		s.flow.MaxAmount = max
	}
}

// WithPINTTL shortens the idle timeout of states holding a PIN hash.
func WithPINTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.flow.PINTTL = ttl
	}
}

// WithWallet sets the custodial wallet backend.
func WithWallet(w ports.Wallet) Option {
	return func(s *Service) {
		s.wallet = w
	}
}

// WithNotifier sets the channel receiving transfer receipts.
func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithFormatters registers extra formatter tags.
func WithFormatters(opts ...formatter.Option) Option {
	return func(s *Service) {
		s.formatters = append(s.formatters, opts...)
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithTurnObserver receives the latency and outcome of every turn.
func WithTurnObserver(fn func(time.Duration, string)) Option {
	return func(s *Service) {
		s.observe = fn
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMaxRetries sets the invalid-input budget per state.
func WithMaxRetries(n int) Option {
	return func(s *Service) {
		s.maxRetries = n
	}
}

// WithTTL sets the default idle timeout and per-state overrides.
func WithTTL(defaultTTL time.Duration, perState map[string]time.Duration) Option {
	return func(s *Service) {
		s.defaultTTL = defaultTTL
		for id, ttl := range perState {
			if s.stateTTL == nil {
				s.stateTTL = make(map[domain.StateID]time.Duration)
			}
			s.stateTTL[domain.StateID(id)] = ttl
		}
	}
}

// New assembles a Service. Without options it serves the embedded catalog in
// English and Kiswahili from an in-memory store.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		enabled:    []string{"en", "sw"},
		fallback:   "en",
		maxRetries: runtime.DefaultMaxRetries,
		defaultTTL: runtime.DefaultTTL,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.store == nil {
		s.store = memory.NewStore()
	}
	if s.catalog == nil {
		c, err := flows.Catalog()
		if err != nil {
			return nil, fmt.Errorf("load embedded catalog: %w", err)
		}
		s.catalog = c
	}

	langs, err := guard.NewLanguageSet(s.enabled, s.fallback, s.fallbackSelectable)
	if err != nil {
		return nil, err
	}
	for _, code := range append(langs.Options(), langs.Fallback()) {
		if !s.catalog.HasLanguage(code) {
			return nil, fmt.Errorf("language %q has no catalog entries", code)
		}
	}
	s.langs = langs
	s.flow.Languages = langs

	s.renderer, err = render.New(s.catalog,
		render.WithFallback(langs.Fallback()),
		render.WithFormatters(formatter.NewRegistry(s.formatters...)),
	)
	if err != nil {
		return nil, err
	}

	managerOpts := []session.Option{session.WithLogger(s.logger)}
	if s.locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(s.locker), session.WithLockTTL(s.lockTTL))
	}
	s.sessions = session.NewManager(s.store, managerOpts...)

	s.engine, err = runtime.New(flows.Table(s.flow), s.renderer, s.sessions,
		runtime.WithMaxRetries(s.maxRetries),
		runtime.WithDefaultTTL(s.defaultTTL),
		runtime.WithStateTTL(s.stateTTL),
		runtime.WithLifecycleHooks(s.hooks),
		runtime.WithLogger(s.logger),
		runtime.WithWallet(s.wallet),
		runtime.WithNotifier(s.notifier),
		runtime.WithTurnObserver(s.observe),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Handle processes one inbound turn.
func (s *Service) Handle(ctx context.Context, turn domain.Turn) (domain.Reply, error) {
	return s.engine.Handle(ctx, turn)
}

// ProcessTurn processes one inbound turn by session ID and raw input.
func (s *Service) ProcessTurn(ctx context.Context, sessionID, rawInput string) (domain.Reply, error) {
	return s.engine.ProcessTurn(ctx, sessionID, rawInput)
}

// Sessions returns the session manager, for operator tooling.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// Renderer returns the template renderer.
func (s *Service) Renderer() *render.Renderer {
	return s.renderer
}

// Catalog returns the loaded locale catalog.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// Languages returns the selectable language set.
func (s *Service) Languages() guard.LanguageSet {
	return s.langs
}

// Table returns the flow definition, for tooling such as graph export.
func (s *Service) Table() runtime.Table {
	return s.engine.Table()
}

// States lists the declared states of the flow.
func (s *Service) States() []domain.StateID {
	return s.engine.States()
}

// Prompt renders the prompt a session would see in its current state.
func (s *Service) Prompt(sess domain.Session) (string, error) {
	return s.engine.Prompt(sess)
}
