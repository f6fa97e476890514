package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

// Environments understood by APP_ENV.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
)

// Config holds runtime configuration for the API server and the operator CLI.
type Config struct {
	Addr           string   `env:"HTTP_ADDR,default=:8080"`
	DatabaseURL    string   `env:"DATABASE_URL"`
	Environment    string   `env:"APP_ENV,default=production"`
	PublicAppURL   string   `env:"PUBLIC_APP_URL,default=http://localhost:5173"`
	DevEmailToken  string   `env:"DEV_EMAIL_TOKEN"`
	SessionCookie  string   `env:"SESSION_COOKIE,default=auth-session"`
	CookieSecure   bool     `env:"COOKIE_SECURE,default=true"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:5173"`
	NATSURL        string   `env:"NATS_URL"`
	NATSSubject    string   `env:"NATS_LOGIN_SUBJECT,default=henry.mail.login"`
	RateBurst      int      `env:"RATE_BURST,default=50"`
	RatePerSec     int      `env:"RATE_PER_SEC,default=20"`
	LoginPerMinute int      `env:"LOGIN_RATE_PER_MIN,default=10"`
	LogLevel       string   `env:"LOG_LEVEL,default=info"`
	OTLPEndpoint   string   `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AuditPageSize  int      `env:"AUDIT_PAGE_SIZE,default=50"`
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration through l.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c Config) Validate() error {
	switch c.Environment {
	case EnvProduction, EnvDevelopment, EnvTest:
	default:
		return fmt.Errorf("config: unknown APP_ENV %q", c.Environment)
	}
	if c.Production() && c.DevEmailToken != "" {
		return errors.New("config: DEV_EMAIL_TOKEN must not be set in production")
	}
	u, err := url.Parse(c.PublicAppURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: PUBLIC_APP_URL %q is not an absolute url", c.PublicAppURL)
	}
	if strings.TrimSpace(c.SessionCookie) == "" {
		return errors.New("config: SESSION_COOKIE is required")
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 || c.LoginPerMinute <= 0 {
		return errors.New("config: rate limits must be positive")
	}
	if c.AuditPageSize <= 0 {
		return errors.New("config: AUDIT_PAGE_SIZE must be positive")
	}
	return nil
}

// Production reports whether the service runs with production settings.
func (c Config) Production() bool {
	return c.Environment == EnvProduction
}

// BaseURL returns PublicAppURL without a trailing slash.
func (c Config) BaseURL() string {
	return strings.TrimRight(c.PublicAppURL, "/")
}
