package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validBase(t *testing.T) {
	t.Helper()
	t.Setenv("SECURITY_SIGNING_SECRET", testSecret)
}

func TestLoad_Defaults(t *testing.T) {
	validBase(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Env != "dev" {
		t.Fatalf("env = %q, want dev", cfg.App.Env)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if got := cfg.TokenTTL(); got != time.Hour {
		t.Fatalf("token ttl = %v, want 1h", got)
	}
	if cfg.Security.HeaderName != "X-CSRF-Token" {
		t.Fatalf("header = %q", cfg.Security.HeaderName)
	}
	if cfg.Rate.Token.Limit != 10 || cfg.RateWindow() != time.Minute {
		t.Fatalf("rate = %d per %v, want 10 per 1m", cfg.Rate.Token.Limit, cfg.RateWindow())
	}
	if cfg.Cache.Kind != "memory" {
		t.Fatalf("cache kind = %q", cfg.Cache.Kind)
	}
	if cfg.IsProd() {
		t.Fatal("dev config reported prod")
	}
}

func TestLoad_MissingSecretIsFatal(t *testing.T) {
	t.Setenv("SECURITY_SIGNING_SECRET", "")

	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for missing signing secret")
	}
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error type = %T, want *config.Error", err)
	}
	if cerr.Field != "security.signing_secret" {
		t.Fatalf("field = %q", cerr.Field)
	}
}

func TestLoad_ShortSecretIsFatal(t *testing.T) {
	t.Setenv("SECURITY_SIGNING_SECRET", "too-short")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for short signing secret")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	validBase(t)
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SERVER_ADDR", ":9999")
	t.Setenv("SECURITY_TOKEN_TTL", "30m")
	t.Setenv("SESSION_SAMESITE", "strict")
	t.Setenv("SESSION_SECURE", "true")
	t.Setenv("RATE_TOKEN_LIMIT", "5")
	t.Setenv("RATE_TOKEN_WINDOW", "10s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.IsProd() {
		t.Fatal("APP_ENV=prod not applied")
	}
	if cfg.Server.Addr != ":9999" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if cfg.TokenTTL() != 30*time.Minute {
		t.Fatalf("ttl = %v", cfg.TokenTTL())
	}
	if cfg.Session.SameSite != "strict" || !cfg.Session.Secure {
		t.Fatalf("session = %+v", cfg.Session)
	}
	if cfg.Rate.Token.Limit != 5 || cfg.RateWindow() != 10*time.Second {
		t.Fatalf("rate = %d per %v", cfg.Rate.Token.Limit, cfg.RateWindow())
	}
}

func TestLoad_YAMLFileWithEnvOnTop(t *testing.T) {
	validBase(t)
	t.Setenv("SERVER_ADDR", ":7001")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("app:\n  env: staging\nserver:\n  addr: \":7000\"\n  cors_allowed_origins: \"https://a.example.com,https://b.example.com\"\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Env != "staging" {
		t.Fatalf("env = %q", cfg.App.Env)
	}
	// Environment wins over the file.
	if cfg.Server.Addr != ":7001" {
		t.Fatalf("addr = %q, want env override", cfg.Server.Addr)
	}
	if cfg.Server.CORSAllowedOrigins != "https://a.example.com,https://b.example.com" {
		t.Fatalf("origins = %q", cfg.Server.CORSAllowedOrigins)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name  string
		field string
		mut   func(c *Config)
	}{
		{"unknown env", "app.env", func(c *Config) { c.App.Env = "qa" }},
		{"bad token ttl", "security.token_ttl", func(c *Config) { c.Security.TokenTTL = "soon" }},
		{"bad session ttl", "session.ttl", func(c *Config) { c.Session.TTL = "12" }},
		{"bad rate window", "rate.token.window", func(c *Config) { c.Rate.Token.Window = "" }},
		{"zero rate limit", "rate.token.limit", func(c *Config) { c.Rate.Token.Limit = -1 }},
		{"unknown cache kind", "cache.kind", func(c *Config) { c.Cache.Kind = "memcached" }},
		{"redis without addr", "cache.redis.addr", func(c *Config) { c.Cache.Kind = "redis"; c.Cache.Redis.Addr = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Config{}
			c.Security.SigningSecret = testSecret
			c.applyDefaults()
			tc.mut(c)

			err := c.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("error type = %T", err)
			}
			if cerr.Field != tc.field {
				t.Fatalf("field = %q, want %q", cerr.Field, tc.field)
			}
		})
	}
}
