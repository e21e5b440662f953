package logger

import (
	"time"

	"go.uber.org/zap"
)

// =================================================================================
// STANDARD FIELDS - HTTP
// =================================================================================

// RequestID creates a field for the request ID.
func RequestID(v string) zap.Field {
	return zap.String("request_id", v)
}

// Method creates a field for the HTTP method.
func Method(v string) zap.Field {
	return zap.String("method", v)
}

// Path creates a field for the request path.
func Path(v string) zap.Field {
	return zap.String("path", v)
}

// Status creates a field for the HTTP status code.
func Status(v int) zap.Field {
	return zap.Int("status", v)
}

// Duration creates a field for the request duration.
func Duration(v time.Duration) zap.Field {
	return zap.Duration("duration", v)
}

// ClientIP creates a field for the client IP.
func ClientIP(v string) zap.Field {
	return zap.String("client_ip", v)
}

// Origin creates a field for the request Origin header.
func Origin(v string) zap.Field {
	return zap.String("origin", v)
}

// =================================================================================
// STANDARD FIELDS - TRUST GATEWAY
// =================================================================================

// IdentityID creates a field for the authenticated identity.
func IdentityID(v string) zap.Field {
	return zap.String("identity_id", v)
}

// Reason creates a field for a rejection sub-reason.
// External responses collapse sub-reasons; logs keep the precise one.
func Reason(v string) zap.Field {
	return zap.String("reason", v)
}

// RateKey creates a field for the rate-limit bucket key.
func RateKey(v string) zap.Field {
	return zap.String("rate_key", v)
}

// =================================================================================
// STANDARD FIELDS - SYSTEM
// =================================================================================

// Component creates a field for the component/module.
func Component(v string) zap.Field {
	return zap.String("component", v)
}

// Op creates a field for the current operation.
func Op(v string) zap.Field {
	return zap.String("op", v)
}

// Layer creates a field for the layer (middleware, controller, service).
func Layer(v string) zap.Field {
	return zap.String("layer", v)
}

// Err creates a field for an error.
func Err(err error) zap.Field {
	return zap.Error(err)
}

// Any creates a field for an arbitrary value.
func Any(key string, v any) zap.Field {
	return zap.Any(key, v)
}

// Strings creates a field for a string slice.
func Strings(key string, v []string) zap.Field {
	return zap.Strings(key, v)
}
