// Package router registers the gateway's route groups.
package router

import (
	"time"

	"github.com/go-chi/chi/v5"

	securityctrl "github.com/dropDatabas3/trustgate/internal/http/controllers/security"
	mw "github.com/dropDatabas3/trustgate/internal/http/middlewares"
	"github.com/dropDatabas3/trustgate/internal/rate"
)

// SecurityRouterDeps contains dependencies for the security routes.
type SecurityRouterDeps struct {
	TokenController *securityctrl.TokenController

	// Limiter throttles token issuance. Required: unthrottled issuance
	// would allow signature enumeration.
	Limiter rate.Limiter

	// RetryAfter is advertised when the limiter store is unreachable.
	RetryAfter time.Duration
}

// RegisterSecurityRoutes mounts the token bootstrap endpoint.
// The route is deliberately outside the anti-forgery gate (it has to be
// callable without a token) but inside the rate limiter.
func RegisterSecurityRoutes(r chi.Router, deps SecurityRouterDeps) {
	r.Route("/v1/security", func(r chi.Router) {
		r.Use(mw.WithNoStore())
		r.Use(mw.WithRateLimit(mw.RateLimitConfig{
			Limiter:            deps.Limiter,
			KeyFunc:            mw.IdentityOrIPRateKey,
			RetryAfterFallback: deps.RetryAfter,
		}))
		r.Get("/token", deps.TokenController.GetToken)
	})
}
