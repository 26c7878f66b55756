// Package config loads the pairauth-server configuration from a YAML file and the
// environment with a fixed precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	pairAuth "github.com/MrEthical07/pairAuth"
	"github.com/ilyakaznacheev/cleanenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
)

// Config is the root server configuration.
// Sources, highest priority first:
//  1. explicit path from --config;
//  2. path in CONFIG_PATH;
//  3. local.yaml in the working directory;
//  4. environment only.
//
// Environment variables always overlay values read from a file.
type Config struct {
	Env     string        `yaml:"env" env:"ENV" env-default:"development"`
	HTTP    HTTPConfig    `yaml:"http"`
	Auth    AuthConfig    `yaml:"auth"`
	Hash    HashConfig    `yaml:"password"`
	Cookie  CookieConfig  `yaml:"cookie"`
	CORS    CORSConfig    `yaml:"cors"`
	Store   StoreConfig   `yaml:"store"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
	Audit   AuditConfig   `yaml:"audit"`
	Rate    RateConfig    `yaml:"rate_limit"`
}

type HTTPConfig struct {
	Host            string        `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port            string        `yaml:"port" env:"HTTP_PORT" env-default:"4000"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"15s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"HTTP_REQUEST_TIMEOUT" env-default:"5s"`
	TrustProxy      bool          `yaml:"trust_proxy" env:"HTTP_TRUST_PROXY" env-default:"false"`
}

// Addr returns host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// AuthConfig holds the token secrets and lifetimes.
type AuthConfig struct {
	AccessSecret  string        `yaml:"jwt_access_secret" env:"JWT_ACCESS_SECRET" env-required:"true"`
	RefreshSecret string        `yaml:"jwt_refresh_secret" env:"JWT_REFRESH_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTTL    time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	Issuer        string        `yaml:"issuer" env:"JWT_ISSUER"`
}

// HashConfig tunes argon2id. Production requires at least 65536 KB and two passes.
type HashConfig struct {
	MemoryKB    uint32 `yaml:"memory_kb" env:"PASSWORD_MEMORY_KB" env-default:"65536"`
	Time        uint32 `yaml:"time" env:"PASSWORD_TIME" env-default:"3"`
	Parallelism uint8  `yaml:"parallelism" env:"PASSWORD_PARALLELISM" env-default:"2"`
}

// CookieConfig is only applied in production.
type CookieConfig struct {
	Domain string `yaml:"domain" env:"COOKIE_DOMAIN"`
}

type CORSConfig struct {
	ClientOrigin string `yaml:"client_origin" env:"CLIENT_ORIGIN" env-default:"http://localhost:5173"`
}

// StoreConfig selects the user persistence backend.
type StoreConfig struct {
	Driver   string `yaml:"driver" env:"STORE_DRIVER" env-default:"memory"`
	RedisURL string `yaml:"redis_url" env:"REDIS_URL"`
	MongoURI string `yaml:"mongo_uri" env:"MONGO_URI"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

// MetricsConfig controls the engine counters, served on /metrics and optionally pushed
// to an OpenTelemetry collector.
type MetricsConfig struct {
	Enabled      bool          `yaml:"enabled" env:"METRICS_ENABLED" env-default:"true"`
	Latency      bool          `yaml:"latency" env:"METRICS_LATENCY" env-default:"false"`
	OTel         bool          `yaml:"otel" env:"METRICS_OTEL" env-default:"false"`
	OTLPEndpoint string        `yaml:"otlp_endpoint" env:"METRICS_OTLP_ENDPOINT" env-default:"localhost:4318"`
	OTLPInsecure bool          `yaml:"otlp_insecure" env:"METRICS_OTLP_INSECURE" env-default:"false"`
	OTLPInterval time.Duration `yaml:"otlp_interval" env:"METRICS_OTLP_INTERVAL" env-default:"30s"`
}

// AuditConfig enables audit events, written to the server log.
type AuditConfig struct {
	Enabled    bool `yaml:"enabled" env:"AUDIT_ENABLED" env-default:"false"`
	BufferSize int  `yaml:"buffer_size" env:"AUDIT_BUFFER_SIZE" env-default:"1024"`
}

// RateConfig is the per-IP request budget. Max 0 disables limiting.
type RateConfig struct {
	Max    int           `yaml:"max" env:"RATE_LIMIT_MAX" env-default:"300"`
	Window time.Duration `yaml:"window" env:"RATE_LIMIT_WINDOW" env-default:"15m"`
}

// IsProduction reports whether ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// MustLoad wraps Load and panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the configuration by precedence and validates it.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	var cfg Config

	tryRead := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", p, err)
		}
		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}
		return &cfg, nil
	}

	if path != "" {
		return tryRead(path)
	}
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return tryRead(envPath)
	}
	if _, err := os.Stat("local.yaml"); err == nil {
		return tryRead("local.yaml")
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values cleanenv cannot express as tags.
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("ENV must be one of development, production, test; got %q", c.Env)
	}

	if c.Auth.AccessSecret == "" || c.Auth.RefreshSecret == "" {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.RedisURL == "" {
			return errors.New("REDIS_URL is required when STORE_DRIVER=redis")
		}
	case DriverMongo:
		if c.Store.MongoURI == "" {
			return errors.New("MONGO_URI is required when STORE_DRIVER=mongo")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be one of memory, redis, mongo; got %q", c.Store.Driver)
	}

	if c.Rate.Max < 0 {
		return errors.New("RATE_LIMIT_MAX must be >= 0")
	}
	if c.Rate.Max > 0 && c.Rate.Window <= 0 {
		return errors.New("RATE_LIMIT_WINDOW must be > 0 when rate limiting is enabled")
	}

	if c.Metrics.OTel {
		if !c.Metrics.Enabled {
			return errors.New("METRICS_OTEL requires METRICS_ENABLED")
		}
		if c.Metrics.OTLPEndpoint == "" || c.Metrics.OTLPInterval <= 0 {
			return errors.New("METRICS_OTLP_ENDPOINT and a positive METRICS_OTLP_INTERVAL are required when METRICS_OTEL is set")
		}
	}

	if c.IsProduction() && c.Store.Driver == DriverMemory {
		return errors.New("STORE_DRIVER=memory is not allowed in production")
	}
	return nil
}

// EngineConfig maps the server configuration onto the engine's. The result still goes
// through pairAuth.Config.Validate at Build.
func (c *Config) EngineConfig() pairAuth.Config {
	ec := pairAuth.DefaultConfig()

	ec.Token.AccessSecret = []byte(c.Auth.AccessSecret)
	ec.Token.RefreshSecret = []byte(c.Auth.RefreshSecret)
	ec.Token.AccessTTL = c.Auth.AccessTTL
	ec.Token.RefreshTTL = c.Auth.RefreshTTL
	ec.Token.Issuer = c.Auth.Issuer

	ec.Password.Memory = c.Hash.MemoryKB
	ec.Password.Time = c.Hash.Time
	ec.Password.Parallelism = c.Hash.Parallelism

	ec.Cookie.Domain = c.Cookie.Domain
	ec.Security.ProductionMode = c.IsProduction()

	ec.Metrics.Enabled = c.Metrics.Enabled
	ec.Metrics.EnableLatencyHistograms = c.Metrics.Enabled && c.Metrics.Latency

	ec.Audit.Enabled = c.Audit.Enabled
	if c.Audit.BufferSize > 0 {
		ec.Audit.BufferSize = c.Audit.BufferSize
	}

	return ec
}
