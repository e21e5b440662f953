package middlewares

import (
	"net/http"
	"strings"

	httpmetrics "github.com/dropDatabas3/trustgate/internal/http"
	"github.com/dropDatabas3/trustgate/internal/http/errors"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
	"github.com/dropDatabas3/trustgate/internal/security/origins"
)

// CORSConfig configures the cross-origin middleware.
type CORSConfig struct {
	// AllowedOrigins is the set resolved at startup by the origins package.
	AllowedOrigins []string

	// TokenHeader is the anti-forgery header clients must be allowed to send.
	TokenHeader string
}

// WithCORS gates credentialed cross-origin requests against the resolved
// allowlist. Same-origin requests (no Origin header) pass untouched. A
// cross-origin request whose origin is absent from the set is rejected
// before it can reach business logic; merely omitting the CORS headers
// would still let non-browser clients through.
func WithCORS(cfg CORSConfig) Middleware {
	tokenHeader := strings.TrimSpace(cfg.TokenHeader)
	if tokenHeader == "" {
		tokenHeader = "X-CSRF-Token"
	}
	allowHeaders := "Content-Type, Authorization, X-Request-ID, " + tokenHeader

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")

			// Vary headers for caches/proxies
			w.Header().Add("Vary", "Origin")
			w.Header().Add("Vary", "Access-Control-Request-Method")
			w.Header().Add("Vary", "Access-Control-Request-Headers")

			if origin == "" {
				// Same-origin or non-browser caller; nothing to negotiate.
				next.ServeHTTP(w, r)
				return
			}

			if !origins.Contains(cfg.AllowedOrigins, origin) {
				logger.From(r.Context()).Warn("cross-origin request rejected",
					logger.Layer("middleware"),
					logger.Op("cors"),
					logger.Origin(origin),
					logger.Path(r.URL.Path),
				)
				httpmetrics.RecordCORSReject(origin)
				errors.WriteError(w, errors.ErrOriginForbidden)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,HEAD,OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowHeaders)
			h.Set("Access-Control-Expose-Headers", "X-Request-ID, X-RateLimit-Remaining, X-RateLimit-Reset, Retry-After")
			h.Set("Access-Control-Max-Age", "600") // preflight cache 10 min

			// Preflight request
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
