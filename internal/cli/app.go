// Package cli assembles the service from configuration and implements the
// operator commands (simulator, catalog lint) behind cmd/ussdflow.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/ussdflow"
	"github.com/aretw0/ussdflow/internal/config"
	"github.com/aretw0/ussdflow/pkg/adapters/file"
	"github.com/aretw0/ussdflow/pkg/adapters/memory"
	redisstore "github.com/aretw0/ussdflow/pkg/adapters/redis"
	"github.com/aretw0/ussdflow/pkg/adapters/wallet"
	"github.com/aretw0/ussdflow/pkg/catalog"
	"github.com/aretw0/ussdflow/pkg/observability"
	"github.com/aretw0/ussdflow/pkg/persistence/middleware"
	"github.com/aretw0/ussdflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
)

// Backend is the session storage selected by configuration.
type Backend struct {
	// Store is the store the engine uses, middleware applied.
	Store  ports.SessionStore
	Locker ports.DistributedLocker
	// Memory is set for the in-memory backend, which needs a sweeper.
	Memory *memory.Store
	Health func(context.Context) error
	Close  func() error
}

// OpenStore builds the configured session store.
func OpenStore(cfg config.Config) (*Backend, error) {
	b := &Backend{Close: func() error { return nil }}

	switch cfg.Store.Backend {
	case config.BackendRedis:
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		var opts []redisstore.Option
		prefix := redisstore.DefaultPrefix
		if cfg.Store.Redis.Prefix != "" {
			prefix = cfg.Store.Redis.Prefix
			opts = append(opts, redisstore.WithPrefix(prefix))
		}
		store := redisstore.NewFromClient(client, opts...)
		b.Store = store
		b.Locker = redisstore.NewLocker(client, prefix)
		b.Health = store.Ping
		b.Close = store.Close
	case config.BackendFile:
		b.Store = file.New(cfg.Store.Dir)
	default:
		store := memory.NewStore()
		b.Store = store
		b.Memory = store
	}

	active, fallback, err := cfg.EncryptionKeys()
	if err != nil {
		return nil, errors.Join(err, b.Close())
	}
	if active != nil {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})
		if err != nil {
			return nil, errors.Join(err, b.Close())
		}
		b.Store = middleware.Chain(b.Store, mw)
	}
	return b, nil
}

// ServiceOptions translates configuration into service options.
func ServiceOptions(cfg config.Config, logger *slog.Logger) ([]ussdflow.Option, error) {
	opts := []ussdflow.Option{
		ussdflow.WithLogger(logger),
		ussdflow.WithLanguages(cfg.Languages.Enabled, cfg.Languages.Fallback, cfg.Languages.FallbackSelectable),
		ussdflow.WithMaxRetries(cfg.Session.MaxRetries),
		ussdflow.WithTTL(cfg.Session.DefaultTTL, cfg.Session.StateTTL),
		ussdflow.WithAmountLimits(cfg.Wallet.MinAmount, cfg.Wallet.MaxAmount),
		ussdflow.WithNotifier(observability.LogNotifier{Logger: logger}),
	}
	if cfg.Session.PINTTL > 0 {
		opts = append(opts, ussdflow.WithPINTTL(cfg.Session.PINTTL))
	}
	if cfg.CatalogDir != "" {
		c, err := catalog.LoadDir(cfg.CatalogDir)
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", cfg.CatalogDir, err)
		}
		opts = append(opts, ussdflow.WithCatalog(c))
	}
	if cfg.Wallet.BaseURL != "" {
		opts = append(opts, ussdflow.WithWallet(wallet.New(cfg.Wallet.BaseURL,
			wallet.WithTimeout(cfg.Wallet.Timeout),
			wallet.WithMaxTries(cfg.Wallet.MaxTries),
			wallet.WithLogger(logger),
		)))
	}
	return opts, nil
}

// App is a fully wired service with its storage and metrics.
type App struct {
	Service  *ussdflow.Service
	Backend  *Backend
	Registry *prometheus.Registry
}

// NewApp wires the service for serving: configured store, metrics and log hooks.
// Extra options are applied last.
func NewApp(cfg config.Config, logger *slog.Logger, extra ...ussdflow.Option) (*App, error) {
	b, err := OpenStore(cfg)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return nil, errors.Join(err, b.Close())
	}

	opts, err := ServiceOptions(cfg, logger)
	if err != nil {
		return nil, errors.Join(err, b.Close())
	}
	if cfg.Wallet.BaseURL == "" {
		logger.Warn("no wallet backend configured; balance and transfer will fail")
	}
	opts = append(opts,
		ussdflow.WithStore(b.Store),
		ussdflow.WithLifecycleHooks(observability.Merge(metrics.Hooks(), observability.LogHooks(logger))),
		ussdflow.WithTurnObserver(metrics.ObserveTurn),
	)
	if b.Locker != nil {
		opts = append(opts, ussdflow.WithLocker(b.Locker, cfg.Session.LockTTL))
	}
	opts = append(opts, extra...)

	svc, err := ussdflow.New(opts...)
	if err != nil {
		return nil, errors.Join(err, b.Close())
	}
	return &App{Service: svc, Backend: b, Registry: reg}, nil
}
