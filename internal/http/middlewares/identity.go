package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/trustgate/internal/identity"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
)

// WithIdentity resolves the caller's identity from Authorization: Bearer
// and stores it in the context. Absent or unverifiable bearers mark the
// request anonymous and continue: deciding whether anonymity is acceptable
// belongs to the endpoint, not to this middleware.
func WithIdentity(resolver identity.Resolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") || resolver == nil {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			id, err := resolver.Resolve(raw)
			if err != nil {
				logger.From(r.Context()).Debug("bearer did not resolve; treating as anonymous",
					logger.Layer("middleware"),
					logger.Op("identity"),
					logger.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			ctx := identity.WithIdentity(r.Context(), id)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.IdentityID(id)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
