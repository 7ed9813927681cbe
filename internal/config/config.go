// Package config reads process configuration from the environment. A .env
// file, when present, is loaded by the command before Load is called.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"conference/internal/database"
	"conference/internal/session"
)

// DefaultSessionSecret is the placeholder secret. It is accepted outside
// production with a warning.
const DefaultSessionSecret = "your_secret_key"

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Config is the typed process configuration
type Config struct {
	Port   int
	AppEnv string

	Database database.Config
	// Redis is nil when no durable session store is configured
	Redis *session.RedisOptions

	SessionSecret string
	SessionMaxAge time.Duration

	PublicDir   string
	CORSOrigins []string
	// TrustedProxies may set X-Forwarded-For; empty trusts no one and the
	// client IP is the socket peer
	TrustedProxies []string

	LoginRatePerMinute int
	LoginBurst         int

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	LogLevel  string
	LogFormat string

	ConsulAddr  string
	ConsulToken string
	ServiceHost string
}

// Production reports whether the process runs with APP_ENV=production
func (c *Config) Production() bool {
	return c.AppEnv == EnvProduction
}

// DefaultSecret reports whether the placeholder signing secret is in use
func (c *Config) DefaultSecret() bool {
	return c.SessionSecret == DefaultSessionSecret
}

// Load builds a Config from the environment. All invalid values are
// reported together.
func Load() (*Config, error) {
	var errs []error
	p := parser{errs: &errs}

	cfg := &Config{
		Port:   p.int("PORT", 3000),
		AppEnv: strings.ToLower(getEnvOrDefault("APP_ENV", EnvDevelopment)),

		SessionSecret: getEnvOrDefault("SESSION_SECRET", DefaultSessionSecret),
		SessionMaxAge: p.duration("SESSION_MAX_AGE", time.Hour),

		PublicDir:   getEnvOrDefault("PUBLIC_DIR", "public"),
		CORSOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),

		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),

		LoginRatePerMinute: p.int("LOGIN_RATE_PER_MINUTE", 10),
		LoginBurst:         p.int("LOGIN_BURST", 5),

		ReadTimeout:  p.duration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout: p.duration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:  p.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "json"),

		ConsulAddr:  os.Getenv("CONSUL_HTTP_ADDR"),
		ConsulToken: os.Getenv("CONSUL_HTTP_TOKEN"),
		ServiceHost: getEnvOrDefault("SERVICE_HOST", "localhost"),
	}

	switch cfg.AppEnv {
	case EnvProduction, EnvDevelopment, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("APP_ENV: unknown environment %q", cfg.AppEnv))
	}

	cfg.Database = database.Config{
		URL:  os.Getenv("DATABASE_URL"),
		Path: getEnvOrDefault("DB_PATH", DefaultDBPath(cfg.AppEnv)),
	}

	if url := os.Getenv("REDIS_URL"); url != "" {
		cfg.Redis = &session.RedisOptions{
			URL:            url,
			TLS:            p.bool("REDIS_TLS", false),
			VerifyTLS:      p.bool("REDIS_TLS_VERIFY", false),
			ConnectTimeout: p.duration("REDIS_CONNECT_TIMEOUT", session.DefaultConnectTimeout),
		}
	}

	for _, proxy := range cfg.TrustedProxies {
		if !validProxy(proxy) {
			errs = append(errs, fmt.Errorf("TRUSTED_PROXIES: %q is not an IP or CIDR", proxy))
		}
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d out of range", cfg.Port))
	}
	if cfg.SessionMaxAge <= 0 {
		errs = append(errs, errors.New("SESSION_MAX_AGE must be positive"))
	}
	if cfg.SessionSecret == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	}
	if cfg.Production() && cfg.DefaultSecret() {
		errs = append(errs, errors.New("SESSION_SECRET must be changed from the default in production"))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// DefaultDBPath returns the SQLite location used for an environment
func DefaultDBPath(appEnv string) string {
	switch appEnv {
	case EnvProduction:
		return "data/conference.sqlite"
	case EnvTest:
		return "file:conference?mode=memory&cache=shared"
	default:
		return "conference.dev.sqlite"
	}
}

type parser struct {
	errs *[]error
}

func (p parser) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// duration accepts Go durations ("90s") or a bare number of seconds
func (p parser) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (p parser) bool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*p.errs = append(*p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

// getEnvOrDefault retrieves an environment variable or returns a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func validProxy(s string) bool {
	if strings.Contains(s, "/") {
		_, err := netip.ParsePrefix(s)
		return err == nil
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
