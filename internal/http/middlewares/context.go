package middlewares

import "context"

type ctxKey string

const (
	// ctxRequestIDKey holds the request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// setRequestID injects the request ID into the context (internal).
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// GetRequestID returns the request ID from the context, or "".
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
