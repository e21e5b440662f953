package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinSecretLength is the minimum accepted length for the signing secret.
// Anything shorter makes HMAC-SHA256 trivially brute-forceable.
const MinSecretLength = 32

// Error is a fatal configuration error. The process must refuse to serve
// traffic when one is returned during startup resolution.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// Errorf builds a configuration error for the given field.
func Errorf(field, format string, args ...any) *Error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type Config struct {
	App struct {
		// dev | staging | prod
		Env string `yaml:"env"`
	} `yaml:"app"`

	Server struct {
		Addr               string `yaml:"addr"`
		CORSAllowedOrigins string `yaml:"cors_allowed_origins"` // comma-separated
	} `yaml:"server"`

	Security struct {
		SigningSecret string `yaml:"signing_secret"`
		TokenTTL      string `yaml:"token_ttl"`
		HeaderName    string `yaml:"header_name"`
	} `yaml:"security"`

	Session struct {
		CookieName string `yaml:"cookie_name"`
		Domain     string `yaml:"domain"`
		SameSite   string `yaml:"samesite"` // empty => mode-dependent default
		Secure     bool   `yaml:"secure"`
		TTL        string `yaml:"ttl"`
	} `yaml:"session"`

	Auth struct {
		// JWTSecret verifies bearer tokens minted by the external identity
		// provider. Empty means every request is treated as anonymous.
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	Rate struct {
		Token struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"token"`
	} `yaml:"rate"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads the YAML config at path (optional), applies environment
// overrides and defaults, and validates. Any validation failure is fatal:
// the caller must not start serving with a partially valid trust boundary.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyEnv()
	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnv overlays environment variables on top of file values.
func (c *Config) applyEnv() {
	c.App.Env = getenv("APP_ENV", c.App.Env)
	c.Server.Addr = getenv("SERVER_ADDR", c.Server.Addr)
	c.Server.CORSAllowedOrigins = getenv("SERVER_CORS_ALLOWED_ORIGINS", c.Server.CORSAllowedOrigins)
	c.Security.SigningSecret = getenv("SECURITY_SIGNING_SECRET", c.Security.SigningSecret)
	c.Security.TokenTTL = getenv("SECURITY_TOKEN_TTL", c.Security.TokenTTL)
	c.Security.HeaderName = getenv("SECURITY_HEADER_NAME", c.Security.HeaderName)
	c.Session.CookieName = getenv("SESSION_COOKIE_NAME", c.Session.CookieName)
	c.Session.Domain = getenv("SESSION_DOMAIN", c.Session.Domain)
	c.Session.SameSite = getenv("SESSION_SAMESITE", c.Session.SameSite)
	c.Session.TTL = getenv("SESSION_TTL", c.Session.TTL)
	c.Auth.JWTSecret = getenv("AUTH_JWT_SECRET", c.Auth.JWTSecret)
	c.Cache.Kind = getenv("CACHE_KIND", c.Cache.Kind)
	c.Cache.Redis.Addr = getenv("REDIS_ADDR", c.Cache.Redis.Addr)
	c.Cache.Redis.Prefix = getenv("REDIS_PREFIX", c.Cache.Redis.Prefix)

	if v := os.Getenv("SESSION_SECURE"); v != "" {
		c.Session.Secure = parseBool(v)
	}
	if v := os.Getenv("RATE_TOKEN_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Rate.Token.Limit = n
		}
	}
	c.Rate.Token.Window = getenv("RATE_TOKEN_WINDOW", c.Rate.Token.Window)
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.Redis.DB = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Security.TokenTTL == "" {
		c.Security.TokenTTL = "1h"
	}
	if c.Security.HeaderName == "" {
		c.Security.HeaderName = "X-CSRF-Token"
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = "sid"
	}
	if c.Session.TTL == "" {
		c.Session.TTL = "12h"
	}
	if c.Rate.Token.Limit == 0 {
		c.Rate.Token.Limit = 10
	}
	if c.Rate.Token.Window == "" {
		c.Rate.Token.Window = "1m"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Redis.Prefix == "" {
		c.Cache.Redis.Prefix = "tg:"
	}
}

// Validate enforces the fail-fast invariants that guard the trust boundary.
func (c *Config) Validate() error {
	if len(c.Security.SigningSecret) < MinSecretLength {
		return Errorf("security.signing_secret",
			"must be at least %d bytes, got %d", MinSecretLength, len(c.Security.SigningSecret))
	}

	switch strings.ToLower(c.App.Env) {
	case "dev", "staging", "prod":
	default:
		return Errorf("app.env", "must be one of dev|staging|prod, got %q", c.App.Env)
	}

	for field, v := range map[string]string{
		"security.token_ttl": c.Security.TokenTTL,
		"session.ttl":        c.Session.TTL,
		"rate.token.window":  c.Rate.Token.Window,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return Errorf(field, "invalid duration %q", v)
		}
	}

	if c.Rate.Token.Limit < 1 {
		return Errorf("rate.token.limit", "must be >= 1, got %d", c.Rate.Token.Limit)
	}

	switch c.Cache.Kind {
	case "memory":
	case "redis":
		if c.Cache.Redis.Addr == "" {
			return Errorf("cache.redis.addr", "required when cache.kind=redis")
		}
	default:
		return Errorf("cache.kind", "must be memory|redis, got %q", c.Cache.Kind)
	}

	return nil
}

// IsProd reports whether the process runs in production mode.
func (c *Config) IsProd() bool {
	return strings.ToLower(c.App.Env) == "prod"
}

// TokenTTL returns the anti-forgery token lifetime.
func (c *Config) TokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Security.TokenTTL)
	return d
}

// SessionTTL returns the session cookie lifetime.
func (c *Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Session.TTL)
	return d
}

// RateWindow returns the token-issuance rate-limit window.
func (c *Config) RateWindow() time.Duration {
	d, _ := time.ParseDuration(c.Rate.Token.Window)
	return d
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
