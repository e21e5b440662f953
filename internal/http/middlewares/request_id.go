package middlewares

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dropDatabas3/trustgate/internal/observability/logger"
)

// WithRequestID generates or propagates a unique request ID.
// If the client sends X-Request-ID it is reused; otherwise a new one is
// generated. The ID is echoed in the response header, stored in the
// context, and attached to the request-scoped logger.
func WithRequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
			if rid == "" {
				rid = uuid.NewString()
			}

			w.Header().Set("X-Request-ID", rid)

			ctx := setRequestID(r.Context(), rid)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.RequestID(rid)))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
