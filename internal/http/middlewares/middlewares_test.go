package middlewares

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/trustgate/internal/identity"
	"github.com/dropDatabas3/trustgate/internal/rate"
	"github.com/dropDatabas3/trustgate/internal/security/antiforgery"
)

var gateSecret = []byte("gate-test-secret-gate-test-secret")

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// asIdentity wraps a handler so the request carries an authenticated identity.
func asIdentity(id string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
	})
}

func issueFor(t *testing.T, id string) string {
	t.Helper()
	tok, err := antiforgery.NewIssuer(gateSecret, time.Hour).Issue(id)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return tok.String()
}

func TestGate_QueriesNeverRequireToken(t *testing.T) {
	t.Parallel()
	h := Chain(okHandler(), WithAntiForgery(GateConfig{
		Validator: antiforgery.NewValidator(gateSecret, time.Hour),
	}))

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/v1/things", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: got %d, want 200", method, rec.Code)
		}
	}
}

func TestGate_MissingToken(t *testing.T) {
	t.Parallel()
	h := Chain(okHandler(), WithAntiForgery(GateConfig{
		Validator: antiforgery.NewValidator(gateSecret, time.Hour),
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/things", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("got %d, want 401 for missing token", rec.Code)
	}
}

func TestGate_ValidToken(t *testing.T) {
	t.Parallel()
	h := asIdentity("alice", Chain(okHandler(), WithAntiForgery(GateConfig{
		Validator: antiforgery.NewValidator(gateSecret, time.Hour),
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/things", nil)
	req.Header.Set("X-CSRF-Token", issueFor(t, "alice"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
}

func TestGate_CrossIdentityReplayCollapsesToInvalid(t *testing.T) {
	t.Parallel()
	h := asIdentity("bob", Chain(okHandler(), WithAntiForgery(GateConfig{
		Validator: antiforgery.NewValidator(gateSecret, time.Hour),
	})))

	// Token minted for alice, presented by bob.
	req := httptest.NewRequest(http.MethodPost, "/v1/things", nil)
	req.Header.Set("X-CSRF-Token", issueFor(t, "alice"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rec.Code)
	}
}

func TestGate_GarbageTokenCollapsesToInvalid(t *testing.T) {
	t.Parallel()
	h := asIdentity("alice", Chain(okHandler(), WithAntiForgery(GateConfig{
		Validator: antiforgery.NewValidator(gateSecret, time.Hour),
	})))

	req := httptest.NewRequest(http.MethodDelete, "/v1/things/1", nil)
	req.Header.Set("X-CSRF-Token", "not:a:real:token")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("got %d, want 403", rec.Code)
	}
}

func TestGate_CustomHeaderName(t *testing.T) {
	t.Parallel()
	h := asIdentity("alice", Chain(okHandler(), WithAntiForgery(GateConfig{
		Validator:  antiforgery.NewValidator(gateSecret, time.Hour),
		HeaderName: "X-Anti-Forgery",
	})))

	req := httptest.NewRequest(http.MethodPost, "/v1/things", nil)
	req.Header.Set("X-Anti-Forgery", issueFor(t, "alice"))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("got %d, want 200", rec.Code)
	}
}

// erringLimiter simulates an unreachable counter store.
type erringLimiter struct{}

func (erringLimiter) Allow(context.Context, string) (rate.Result, error) {
	return rate.Result{}, errors.New("redis: connection refused")
}

func TestRateLimit_FailsClosedOnStoreError(t *testing.T) {
	t.Parallel()
	h := Chain(okHandler(), WithRateLimit(RateLimitConfig{Limiter: erringLimiter{}}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/security/token", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("store outage must deny: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("rejection must carry a retry hint")
	}
}

func TestRateLimit_QuotaAndRetryHeaders(t *testing.T) {
	t.Parallel()
	h := Chain(okHandler(), WithRateLimit(RateLimitConfig{
		Limiter: rate.NewMemoryLimiter(2, time.Minute),
	}))

	for i := 1; i <= 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/security/token", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/security/token", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After")
	}
}

func TestRateLimit_IdentityKeyIsolatesCallers(t *testing.T) {
	t.Parallel()
	h := Chain(okHandler(), WithRateLimit(RateLimitConfig{
		Limiter: rate.NewMemoryLimiter(1, time.Minute),
	}))

	send := func(id string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/security/token", nil)
		if id != "" {
			req = req.WithContext(identity.WithIdentity(req.Context(), id))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := send("alice"); got != http.StatusOK {
		t.Fatalf("alice/1: %d", got)
	}
	if got := send("alice"); got != http.StatusTooManyRequests {
		t.Fatalf("alice/2: %d, want 429", got)
	}
	// bob gets a separate bucket.
	if got := send("bob"); got != http.StatusOK {
		t.Fatalf("bob/1: %d, want 200", got)
	}
}

func TestCORS_AllowedAndRejected(t *testing.T) {
	t.Parallel()
	h := Chain(okHandler(), WithCORS(CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
	}))

	// Allowed origin gets the credentialed headers.
	req := httptest.NewRequest(http.MethodGet, "/v1/things", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("allowed origin: got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatal("missing Access-Control-Allow-Origin")
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("missing Access-Control-Allow-Credentials")
	}

	// Unknown origin is rejected outright.
	req = httptest.NewRequest(http.MethodPost, "/v1/things", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unknown origin: got %d, want 403", rec.Code)
	}

	// Same-origin (no Origin header) is untouched.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/things", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("same-origin: got %d", rec.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()
	h := Chain(okHandler(), WithCORS(CORSConfig{
		AllowedOrigins: []string{"https://app.example.com"},
		TokenHeader:    "X-CSRF-Token",
	}))

	req := httptest.NewRequest(http.MethodOptions, "/v1/things", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight: got %d, want 204", rec.Code)
	}
}

func TestWithIdentity_AnonymousOnBadBearer(t *testing.T) {
	t.Parallel()

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = identity.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := Chain(inner, WithIdentity(identity.NewJWTResolver([]byte("identity-verification-secret-0001"))))

	req := httptest.NewRequest(http.MethodGet, "/v1/security/token", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got %d", rec.Code)
	}
	if seen != identity.Anonymous {
		t.Fatalf("expected anonymous, got %q", seen)
	}
}
