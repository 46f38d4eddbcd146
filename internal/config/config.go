// Package config loads service configuration in layers: defaults, an optional
// YAML file, then USSDFLOW_* environment variables. Flags are applied by the CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aretw0/ussdflow/pkg/persistence/middleware"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "USSDFLOW_"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config is the complete service configuration.
type Config struct {
	Languages LanguagesConfig `yaml:"languages" envPrefix:"LANG_"`
	Session   SessionConfig   `yaml:"session" envPrefix:"SESSION_"`
	HTTP      HTTPConfig      `yaml:"http" envPrefix:"HTTP_"`
	Store     StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	Wallet    WalletConfig    `yaml:"wallet" envPrefix:"WALLET_"`
	Log       LogConfig       `yaml:"log" envPrefix:"LOG_"`

	// CatalogDir overrides the embedded locales with a directory holding locales/.
	CatalogDir string `yaml:"catalog_dir" env:"CATALOG_DIR"`
}

// LanguagesConfig controls language selection and template fallback.
// Fallback and FallbackSelectable are independent knobs.
type LanguagesConfig struct {
	Enabled            []string `yaml:"enabled" env:"ENABLED" envSeparator:","`
	Fallback           string   `yaml:"fallback" env:"FALLBACK"`
	FallbackSelectable bool     `yaml:"fallback_selectable" env:"FALLBACK_SELECTABLE"`
}

// SessionConfig controls idle timeouts and the invalid-input budget.
type SessionConfig struct {
	DefaultTTL  time.Duration            `yaml:"default_ttl" env:"DEFAULT_TTL"`
	PINTTL      time.Duration            `yaml:"pin_ttl" env:"PIN_TTL"`
	StateTTL    map[string]time.Duration `yaml:"state_ttl"`
	MaxRetries  int                      `yaml:"max_retries" env:"MAX_RETRIES"`
	TurnTimeout time.Duration            `yaml:"turn_timeout" env:"TURN_TIMEOUT"`
	LockTTL     time.Duration            `yaml:"lock_ttl" env:"LOCK_TTL"`
}

// HTTPConfig controls the gateway adapter.
type HTTPConfig struct {
	Addr          string `yaml:"addr" env:"ADDR"`
	Path          string `yaml:"path" env:"PATH"`
	MetricsPath   string `yaml:"metrics_path" env:"METRICS_PATH"`
	MaxInputBytes int    `yaml:"max_input_bytes" env:"MAX_INPUT_BYTES"`
}

// StoreConfig selects and configures the session store.
type StoreConfig struct {
	Backend       string        `yaml:"backend" env:"BACKEND"`
	Redis         RedisConfig   `yaml:"redis" envPrefix:"REDIS_"`
	Dir           string        `yaml:"dir" env:"DIR"`
	EncryptionKey string        `yaml:"encryption_key" env:"ENCRYPTION_KEY"`
	FallbackKeys  []string      `yaml:"fallback_keys" env:"FALLBACK_KEYS" envSeparator:","`
	SweepInterval time.Duration `yaml:"sweep_interval" env:"SWEEP_INTERVAL"`
}

// RedisConfig holds the redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	Prefix   string `yaml:"prefix" env:"PREFIX"`
}

// WalletConfig configures the custodial backend client and transfer limits.
type WalletConfig struct {
	BaseURL   string        `yaml:"base_url" env:"BASE_URL"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxTries  uint          `yaml:"max_tries" env:"MAX_TRIES"`
	MinAmount float64       `yaml:"min_amount" env:"MIN_AMOUNT"`
	MaxAmount float64       `yaml:"max_amount" env:"MAX_AMOUNT"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Languages: LanguagesConfig{
			Enabled:  []string{"en", "sw"},
			Fallback: "en",
		},
		Session: SessionConfig{
			DefaultTTL:  3 * time.Minute,
			PINTTL:      time.Minute,
			MaxRetries:  3,
			TurnTimeout: 5 * time.Second,
			LockTTL:     10 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:          ":8080",
			Path:          "/ussd",
			MetricsPath:   "/metrics",
			MaxInputBytes: 182,
		},
		Store: StoreConfig{
			Backend:       BackendMemory,
			Redis:         RedisConfig{Addr: "localhost:6379"},
			SweepInterval: time.Minute,
		},
		Wallet: WalletConfig{
			Timeout:   5 * time.Second,
			MaxTries:  3,
			MinAmount: 10,
			MaxAmount: 150000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (optional)
// and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

// Validate reports every invalid setting at once.
// Languages are checked against the catalog when the service is assembled.
func (c Config) Validate() error {
	var errs []error

	if len(c.Languages.Enabled) == 0 {
		errs = append(errs, errors.New("languages.enabled must list at least one language"))
	}
	if c.Languages.Fallback == "" {
		errs = append(errs, errors.New("languages.fallback is required"))
	}
	if c.Session.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("session.max_retries must be >= 1, got %d", c.Session.MaxRetries))
	}
	if c.Session.DefaultTTL <= 0 {
		errs = append(errs, errors.New("session.default_ttl must be positive"))
	}
	for state, ttl := range c.Session.StateTTL {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("session.state_ttl.%s must be positive", state))
		}
	}
	if c.HTTP.MaxInputBytes < 1 {
		errs = append(errs, errors.New("http.max_input_bytes must be positive"))
	}

	switch c.Store.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.backend must be one of %q, %q, %q, got %q", BackendMemory, BackendFile, BackendRedis, c.Store.Backend))
	}
	if c.Store.EncryptionKey != "" {
		if _, err := middleware.ParseKey(c.Store.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("store.encryption_key: %w", err))
		}
	} else if len(c.Store.FallbackKeys) > 0 {
		errs = append(errs, errors.New("store.fallback_keys requires store.encryption_key"))
	}
	for i, k := range c.Store.FallbackKeys {
		if _, err := middleware.ParseKey(k); err != nil {
			errs = append(errs, fmt.Errorf("store.fallback_keys[%d]: %w", i, err))
		}
	}

	if c.Wallet.MinAmount < 0 {
		errs = append(errs, errors.New("wallet.min_amount cannot be negative"))
	}
	if c.Wallet.MaxAmount > 0 && c.Wallet.MaxAmount < c.Wallet.MinAmount {
		errs = append(errs, errors.New("wallet.max_amount must be >= wallet.min_amount"))
	}

	return errors.Join(errs...)
}

// EncryptionKeys decodes the active and fallback keys. It returns a nil active
// key when encryption is disabled.
func (c Config) EncryptionKeys() (active []byte, fallback [][]byte, err error) {
	if c.Store.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = middleware.ParseKey(c.Store.EncryptionKey)
	if err != nil {
		return nil, nil, err
	}
	for _, k := range c.Store.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, nil, err
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}
