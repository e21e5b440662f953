package middlewares

import (
	"errors"
	"net/http"
	"strings"

	httpmetrics "github.com/dropDatabas3/trustgate/internal/http"
	httperrors "github.com/dropDatabas3/trustgate/internal/http/errors"
	"github.com/dropDatabas3/trustgate/internal/identity"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
	"github.com/dropDatabas3/trustgate/internal/security/antiforgery"
)

// GateConfig configures the anti-forgery gate.
type GateConfig struct {
	Validator *antiforgery.Validator

	// HeaderName carries the token. Default: "X-CSRF-Token".
	HeaderName string
}

// isMutation classifies the request: state-changing methods require a
// token, everything else is admitted directly.
func isMutation(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// WithAntiForgery gates mutations on a valid identity-bound token.
//
// Externally only two outcomes exist: TOKEN_MISSING and TOKEN_INVALID.
// Expiry, tampering, malformed structure and identity mismatch all collapse
// into TOKEN_INVALID so a probing client cannot use the response as an
// oracle; the precise sub-reason goes to the log.
func WithAntiForgery(cfg GateConfig) Middleware {
	headerName := strings.TrimSpace(cfg.HeaderName)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutation(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			log := logger.From(r.Context()).With(
				logger.Layer("middleware"),
				logger.Op("antiforgery"),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
			)

			raw := strings.TrimSpace(r.Header.Get(headerName))
			if raw == "" {
				log.Warn("mutation rejected", logger.Reason("missing"))
				httpmetrics.RecordTokenReject("missing")
				httperrors.WriteError(w, httperrors.ErrTokenMissing)
				return
			}

			id := identity.FromContext(r.Context())
			if err := cfg.Validator.Validate(raw, id); err != nil {
				reason := rejectReason(err)
				log.Warn("mutation rejected", logger.Reason(reason), logger.Err(err))
				httpmetrics.RecordTokenReject(reason)
				httperrors.WriteError(w, httperrors.ErrTokenInvalid)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rejectReason maps a validation error to its internal log/metric label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, antiforgery.ErrExpired):
		return "expired"
	case errors.Is(err, antiforgery.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, antiforgery.ErrIdentityMismatch):
		return "identity_mismatch"
	case errors.Is(err, antiforgery.ErrMalformed):
		return "malformed"
	default:
		return "unknown"
	}
}
