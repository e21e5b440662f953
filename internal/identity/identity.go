// Package identity is the gateway's view of the external identity provider.
//
// The gateway never authenticates credentials. An upstream component mints
// bearer tokens; this package only extracts the already-established
// identity from a request and exposes it through the context. A request
// without a verifiable identity is anonymous, which is a normal state, not
// an error.
package identity

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Anonymous is the identity of an unauthenticated caller.
const Anonymous = ""

type ctxKey struct{}

// WithIdentity injects an identity id into the context.
func WithIdentity(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the authenticated identity id, or Anonymous.
func FromContext(ctx context.Context) string {
	if v := ctx.Value(ctxKey{}); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return Anonymous
}

// IsAuthenticated reports whether the context carries an identity.
func IsAuthenticated(ctx context.Context) bool {
	return FromContext(ctx) != Anonymous
}

// Resolver extracts an identity id from a bearer token string.
type Resolver interface {
	Resolve(bearer string) (string, error)
}

// JWTResolver verifies HS256 bearer tokens minted by the external identity
// provider and extracts the subject claim.
type JWTResolver struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTResolver creates a resolver for the shared verification secret.
func NewJWTResolver(secret []byte) *JWTResolver {
	return &JWTResolver{
		secret: secret,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{"HS256"}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Resolve parses and verifies the bearer token and returns its subject.
func (r *JWTResolver) Resolve(bearer string) (string, error) {
	if len(r.secret) == 0 {
		return Anonymous, fmt.Errorf("identity: no verification secret configured")
	}

	tok, err := r.parser.Parse(bearer, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	})
	if err != nil {
		return Anonymous, fmt.Errorf("identity: parse bearer: %w", err)
	}

	sub, err := tok.Claims.GetSubject()
	if err != nil || sub == "" {
		return Anonymous, fmt.Errorf("identity: bearer has no subject")
	}
	return sub, nil
}
