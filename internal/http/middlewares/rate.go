package middlewares

import (
	"net/http"
	"strconv"
	"time"

	httpmetrics "github.com/dropDatabas3/trustgate/internal/http"
	"github.com/dropDatabas3/trustgate/internal/http/errors"
	"github.com/dropDatabas3/trustgate/internal/identity"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
	"github.com/dropDatabas3/trustgate/internal/rate"
)

// RateKeyFunc derives the rate-limit bucket key from a request.
type RateKeyFunc func(r *http.Request) string

// IdentityOrIPRateKey keys by the authenticated identity, falling back to
// the client IP for anonymous callers. Keeps one caller from exhausting
// another's quota while still bounding anonymous enumeration per address.
func IdentityOrIPRateKey(r *http.Request) string {
	if id := identity.FromContext(r.Context()); id != identity.Anonymous {
		return "id|" + id
	}
	return "ip|" + clientIP(r)
}

// RateLimitConfig configures the rate-limit middleware.
type RateLimitConfig struct {
	Limiter rate.Limiter
	KeyFunc RateKeyFunc

	// RetryAfterFallback is advertised when the limiter could not compute a
	// window remainder (e.g. the store was unreachable).
	RetryAfterFallback time.Duration
}

// WithRateLimit throttles the wrapped handler.
//
// The middleware fails CLOSED: when the counter store cannot answer, the
// request is treated as over the limit. Admitting unlimited requests
// whenever the store is down would let an attacker turn a Redis outage
// into an enumeration window.
func WithRateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = IdentityOrIPRateKey
	}
	if cfg.RetryAfterFallback <= 0 {
		cfg.RetryAfterFallback = time.Minute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)

			res, err := cfg.Limiter.Allow(r.Context(), key)
			if err != nil {
				logger.From(r.Context()).Error("rate limiter unavailable; failing closed",
					logger.Layer("middleware"),
					logger.Op("rate_limit"),
					logger.RateKey(key),
					logger.Err(err),
				)
				httpmetrics.RecordRateLimited()
				w.Header().Set("Retry-After", strconv.Itoa(int(cfg.RetryAfterFallback.Seconds())))
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}

			if !res.Allowed {
				logger.From(r.Context()).Warn("rate limit exceeded",
					logger.Layer("middleware"),
					logger.Op("rate_limit"),
					logger.RateKey(key),
					logger.Any("hits", res.CurrentHits),
				)
				httpmetrics.RecordRateLimited()
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				if res.WindowTTL > 0 {
					resetAt := time.Now().Add(res.WindowTTL).Unix()
					w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
				}
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if res.WindowTTL > 0 {
				resetAt := time.Now().Add(res.WindowTTL).Unix()
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))
			}

			next.ServeHTTP(w, r)
		})
	}
}
