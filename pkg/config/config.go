package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ona79/facturation-app/pkg/domain"
	"github.com/ona79/facturation-app/pkg/logging"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Store   StoreConfig    `yaml:"store"`
	Cache   CacheConfig    `yaml:"cache"`
	Events  EventsConfig   `yaml:"events"`
	Invoice InvoiceConfig  `yaml:"invoice"`
	Log     logging.Config `yaml:"log"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	FrontendOrigin string `yaml:"frontend_origin"`
}

type StoreConfig struct {
	Driver      string `yaml:"driver"`
	DatabaseURL string `yaml:"database_url"`
}

// CacheConfig enables the Redis invoice cache when RedisAddr is set.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	Prefix    string        `yaml:"prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// EventsConfig enables RabbitMQ publishing when AMQPURL is set.
type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type InvoiceConfig struct {
	DefaultCurrency   string `yaml:"default_currency"`
	MaxNumberAttempts int    `yaml:"max_number_attempts"`
	MaxInsertAttempts int    `yaml:"max_insert_attempts"`
	ListLimit         int    `yaml:"list_limit"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a YAML file, applies defaults and environment overrides, and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, err
		}
	}
	ApplyEnv(cfg, os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse parses YAML data into a Config with defaults filled in.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":3001"
	}
	if cfg.Server.FrontendOrigin == "" {
		cfg.Server.FrontendOrigin = "http://localhost:5173"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreMemory
	}
	if cfg.Cache.Prefix == "" {
		cfg.Cache.Prefix = "facturation:"
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "facturation"
	}
	if cfg.Invoice.DefaultCurrency == "" {
		cfg.Invoice.DefaultCurrency = domain.DefaultCurrency
	}
	if cfg.Invoice.MaxNumberAttempts == 0 {
		cfg.Invoice.MaxNumberAttempts = 20
	}
	if cfg.Invoice.MaxInsertAttempts == 0 {
		cfg.Invoice.MaxInsertAttempts = 5
	}
	if cfg.Invoice.ListLimit == 0 {
		cfg.Invoice.ListLimit = 100
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// ApplyEnv overrides file values with the deployment environment.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("PORT"); v != "" {
		cfg.Server.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v := getenv("FRONTEND_URL"); v != "" {
		cfg.Server.FrontendOrigin = v
	}
	if v := getenv("FACTURATION_STORE"); v != "" {
		cfg.Store.Driver = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		cfg.Store.DatabaseURL = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := getenv("AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
	if v := getenv("FACTURATION_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, errors.New("store.database_url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, postgres", c.Store.Driver))
	}
	if c.Invoice.MaxNumberAttempts < 1 {
		errs = append(errs, errors.New("invoice.max_number_attempts must be positive"))
	}
	if c.Invoice.MaxInsertAttempts < 1 {
		errs = append(errs, errors.New("invoice.max_insert_attempts must be positive"))
	}
	if c.Invoice.ListLimit < 1 {
		errs = append(errs, errors.New("invoice.list_limit must be positive"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
