// Package server wires configuration into a serving http.Handler. All
// fail-fast resolution (cookie policy, origin allowlist, signing secret)
// happens here, before the process accepts traffic.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/trustgate/internal/config"
	httpmetrics "github.com/dropDatabas3/trustgate/internal/http"
	securityctrl "github.com/dropDatabas3/trustgate/internal/http/controllers/security"
	"github.com/dropDatabas3/trustgate/internal/http/errors"
	"github.com/dropDatabas3/trustgate/internal/http/helpers"
	mw "github.com/dropDatabas3/trustgate/internal/http/middlewares"
	"github.com/dropDatabas3/trustgate/internal/http/router"
	securitysvc "github.com/dropDatabas3/trustgate/internal/http/services/security"
	"github.com/dropDatabas3/trustgate/internal/identity"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
	"github.com/dropDatabas3/trustgate/internal/rate"
	"github.com/dropDatabas3/trustgate/internal/security/antiforgery"
	"github.com/dropDatabas3/trustgate/internal/security/cookiepolicy"
	"github.com/dropDatabas3/trustgate/internal/security/origins"
)

// Server is the composed gateway: the single service object holding every
// piece of shared state, built once at startup and passed by handle into
// the request path.
type Server struct {
	cfg     *config.Config
	mux     *chi.Mux
	gate    mw.Middleware
	session *helpers.SessionCookieWriter

	policy  cookiepolicy.Policy
	allowed []string

	redis   *rdb.Client
	limiter rate.Limiter
}

// New resolves all startup configuration and builds the handler tree.
// Every error returned here is fatal: the process must not serve traffic
// behind an unvalidated trust boundary.
func New(cfg *config.Config) (*Server, error) {
	log := logger.With(logger.Component("server"))

	// Config may come from Load (already validated) or be built directly by
	// an embedding service; re-check so a short secret can never slip through.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	policy, err := cookiepolicy.Resolve(cookiepolicy.Options{
		Override:   cfg.Session.SameSite,
		Secure:     cfg.Session.Secure,
		Production: cfg.IsProd(),
		MaxAge:     cfg.SessionTTL(),
	})
	if err != nil {
		return nil, err
	}

	allowed, err := origins.ResolveAllowedOrigins(cfg.Server.CORSAllowedOrigins, cfg.IsProd())
	if err != nil {
		return nil, err
	}

	// Startup diagnostics: operators audit the resolved trust boundary
	// from these two lines.
	log.Info("resolved session cookie policy",
		logger.Any("samesite", string(policy.SameSite)),
		logger.Any("secure", policy.Secure),
		logger.Any("http_only", policy.HTTPOnly),
		logger.Any("max_age", policy.MaxAge.String()),
	)
	log.Info("resolved allowed origins", logger.Strings("origins", allowed))

	s := &Server{
		cfg:     cfg,
		policy:  policy,
		allowed: allowed,
		session: helpers.NewSessionCookieWriter(policy, cfg.Session.CookieName, cfg.Session.Domain),
	}

	secret := []byte(cfg.Security.SigningSecret)
	issuer := antiforgery.NewIssuer(secret, cfg.TokenTTL())
	validator := antiforgery.NewValidator(secret, cfg.TokenTTL())

	s.limiter = s.buildLimiter()

	var resolver identity.Resolver
	if cfg.Auth.JWTSecret != "" {
		resolver = identity.NewJWTResolver([]byte(cfg.Auth.JWTSecret))
	} else {
		log.Warn("no identity verification secret configured; all callers are anonymous")
	}

	metricsHandler, err := httpmetrics.RegisterMetrics(nil)
	if err != nil {
		return nil, err
	}

	s.gate = mw.WithAntiForgery(mw.GateConfig{
		Validator:  validator,
		HeaderName: cfg.Security.HeaderName,
	})

	r := chi.NewRouter()
	r.Use(mw.WithRecover())
	r.Use(mw.WithRequestID())
	r.Use(httpmetrics.WithMetrics)
	r.Use(mw.WithSecurityHeaders())
	r.Use(mw.WithCORS(mw.CORSConfig{
		AllowedOrigins: allowed,
		TokenHeader:    cfg.Security.HeaderName,
	}))
	r.Use(mw.WithIdentity(resolver))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteError(w, errors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	router.RegisterSecurityRoutes(r, router.SecurityRouterDeps{
		TokenController: securityctrl.NewTokenController(
			securitysvc.NewTokenService(securitysvc.TokenDeps{Issuer: issuer}),
		),
		Limiter:    s.limiter,
		RetryAfter: cfg.RateWindow(),
	})

	s.mux = r
	return s, nil
}

// buildLimiter picks the counter backend for token issuance.
func (s *Server) buildLimiter() rate.Limiter {
	cfg := s.cfg
	if cfg.Cache.Kind == "redis" {
		s.redis = rdb.NewClient(&rdb.Options{
			Addr: cfg.Cache.Redis.Addr,
			DB:   cfg.Cache.Redis.DB,
		})
		return rate.NewRedisLimiter(s.redis, cfg.Cache.Redis.Prefix, cfg.Rate.Token.Limit, cfg.RateWindow())
	}
	return rate.NewMemoryLimiter(cfg.Rate.Token.Limit, cfg.RateWindow())
}

// Handler returns the composed handler tree.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Gate returns the anti-forgery middleware so collaborating services can
// mount business routes behind it.
func (s *Server) Gate() mw.Middleware {
	return s.gate
}

// Protected registers business routes behind the anti-forgery gate.
// Queries on these routes pass through; mutations require a valid token.
func (s *Server) Protected(fn func(r chi.Router)) {
	s.mux.Group(func(r chi.Router) {
		r.Use(s.gate)
		fn(r)
	})
}

// Sessions returns the policy-stamping session cookie writer.
func (s *Server) Sessions() *helpers.SessionCookieWriter {
	return s.session
}

// Policy returns the resolved session-cookie policy.
func (s *Server) Policy() cookiepolicy.Policy {
	return s.policy
}

// AllowedOrigins returns the resolved origin allowlist.
func (s *Server) AllowedOrigins() []string {
	return s.allowed
}

// Close releases held connections.
func (s *Server) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

// handleReadyz reports readiness. With a Redis-backed limiter the counter
// store must answer: the gateway fails closed without it, so a dead Redis
// means every issuance request would be throttled.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.redis.Ping(ctx).Err(); err != nil {
			logger.From(r.Context()).Error("readiness: redis unreachable", logger.Err(err))
			errors.WriteError(w, errors.ErrServiceUnavailable)
			return
		}
	}
	errors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
