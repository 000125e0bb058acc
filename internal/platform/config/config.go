// Package config loads service configuration.
//
// Precedence, lowest to highest: built-in defaults, the YAML file passed to
// Load, then BEACON_* environment variables. An environment variable maps
// to a key by dropping the prefix and splitting on the first underscore:
//
//	BEACON_SERVER_ADDR        -> server.addr
//	BEACON_STORE_POSTGRES_DSN -> store.postgres_dsn
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "BEACON_"
	maxConfigFileSize = 1 << 20
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// Gateway drivers.
const (
	GatewayHTTP = "http"
	GatewayLog  = "log"
)

const defaults = `
server:
  addr: ":8080"
  read_header_timeout: 5s
  request_timeout: 30s
  shutdown_timeout: 10s
log:
  level: info
  development: false
store:
  driver: memory
  redis_pool_size: 10
  redis_min_idle_conns: 2
  redis_dial_timeout: 5s
  redis_read_timeout: 3s
  redis_write_timeout: 3s
gateway:
  driver: log
  timeout: 10s
  breaker_failures: 0
  breaker_cooldown: 30s
routing:
  escalation_prefix: "[ESCALATION]"
`

// Config is the full service configuration.
type Config struct {
	Server  Server  `koanf:"server"`
	Log     Log     `koanf:"log"`
	Store   Store   `koanf:"store"`
	Gateway Gateway `koanf:"gateway"`
	Routing Routing `koanf:"routing"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	RequestTimeout    time.Duration `koanf:"request_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

type Log struct {
	Level       string `koanf:"level"`
	Development bool   `koanf:"development"`
}

// Store selects and configures the contact store backend.
type Store struct {
	Driver            string        `koanf:"driver"`
	PostgresDSN       string        `koanf:"postgres_dsn"`
	RedisURL          string        `koanf:"redis_url"`
	RedisPoolSize     int           `koanf:"redis_pool_size"`
	RedisMinIdleConns int           `koanf:"redis_min_idle_conns"`
	RedisDialTimeout  time.Duration `koanf:"redis_dial_timeout"`
	RedisReadTimeout  time.Duration `koanf:"redis_read_timeout"`
	RedisWriteTimeout time.Duration `koanf:"redis_write_timeout"`
}

// RedisConfig holds the connection settings for the Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis extracts the Redis client settings.
func (s Store) Redis() RedisConfig {
	return RedisConfig{
		URL:          s.RedisURL,
		PoolSize:     s.RedisPoolSize,
		MinIdleConns: s.RedisMinIdleConns,
		DialTimeout:  s.RedisDialTimeout,
		ReadTimeout:  s.RedisReadTimeout,
		WriteTimeout: s.RedisWriteTimeout,
	}
}

// Gateway configures outbound SMS delivery.
type Gateway struct {
	Driver    string        `koanf:"driver"`
	BaseURL   string        `koanf:"base_url"`
	AccountID string        `koanf:"account_id"`
	AuthToken string        `koanf:"auth_token"`
	From      string        `koanf:"from"`
	Timeout   time.Duration `koanf:"timeout"`

	// Consecutive transport failures before the dispatcher skips sends,
	// and how long it skips them before probing again. Zero disables.
	BreakerFailures int           `koanf:"breaker_failures"`
	BreakerCooldown time.Duration `koanf:"breaker_cooldown"`
}

// Routing holds the texts the routing engine sends. Empty fields keep the
// engine defaults.
type Routing struct {
	EscalationPrefix      string `koanf:"escalation_prefix"`
	ForwardedConfirmation string `koanf:"forwarded_confirmation"`
	BroadcastConfirmation string `koanf:"broadcast_confirmation"`
}

// Load builds a Config from defaults, the optional YAML file at path and
// the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(rawbytes.Provider([]byte(defaults)), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envKey maps BEACON_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// Validate rejects unknown drivers and missing settings for the selected ones.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store.postgres_dsn is required for the postgres driver"))
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			errs = append(errs, errors.New("store.redis_url is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch c.Gateway.Driver {
	case GatewayLog:
	case GatewayHTTP:
		if c.Gateway.BaseURL == "" {
			errs = append(errs, errors.New("gateway.base_url is required for the http driver"))
		}
		if c.Gateway.From == "" {
			errs = append(errs, errors.New("gateway.from is required for the http driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown gateway.driver %q", c.Gateway.Driver))
	}
	return errors.Join(errs...)
}
