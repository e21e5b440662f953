package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/trustgate/internal/http/errors"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
)

// WithRecover catches panics and answers 500 instead of crashing the process.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log := logger.From(r.Context())
					log.Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					errors.WriteError(w, errors.ErrInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
