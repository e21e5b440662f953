package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testJWTSecret = []byte("identity-verification-secret-0001")

func mintBearer(t *testing.T, secret []byte, sub string, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})
	s, err := tok.SignedString(secret)
	if err != nil {
		t.Fatalf("sign bearer: %v", err)
	}
	return s
}

func TestJWTResolver_ValidBearer(t *testing.T) {
	t.Parallel()
	r := NewJWTResolver(testJWTSecret)

	bearer := mintBearer(t, testJWTSecret, "user-42", time.Now().Add(time.Hour))
	sub, err := r.Resolve(bearer)
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("sub = %q", sub)
	}
}

func TestJWTResolver_Rejections(t *testing.T) {
	t.Parallel()
	r := NewJWTResolver(testJWTSecret)

	expired := mintBearer(t, testJWTSecret, "user-42", time.Now().Add(-time.Minute))
	if _, err := r.Resolve(expired); err == nil {
		t.Fatal("expired bearer must not resolve")
	}

	wrongKey := mintBearer(t, []byte("another-secret-another-secret-00"), "user-42", time.Now().Add(time.Hour))
	if _, err := r.Resolve(wrongKey); err == nil {
		t.Fatal("bearer signed with a different key must not resolve")
	}

	if _, err := r.Resolve("not-a-jwt"); err == nil {
		t.Fatal("garbage bearer must not resolve")
	}
}

func TestContextRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	if IsAuthenticated(ctx) {
		t.Fatal("fresh context must be anonymous")
	}

	ctx = WithIdentity(ctx, "user-7")
	if FromContext(ctx) != "user-7" {
		t.Fatalf("identity = %q", FromContext(ctx))
	}
	if !IsAuthenticated(ctx) {
		t.Fatal("expected authenticated context")
	}
}
