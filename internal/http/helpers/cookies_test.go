package helpers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dropDatabas3/trustgate/internal/security/cookiepolicy"
)

func TestSessionCookieWriter_SetAppliesPolicy(t *testing.T) {
	t.Parallel()

	policy := cookiepolicy.Policy{
		SameSite: cookiepolicy.SameSiteStrict,
		Secure:   true,
		HTTPOnly: true,
		MaxAge:   12 * time.Hour,
	}
	w := NewSessionCookieWriter(policy, "sid", "")

	rec := httptest.NewRecorder()
	w.Set(rec, "session-value")

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	ck := cookies[0]
	if ck.Name != "sid" || ck.Value != "session-value" {
		t.Fatalf("unexpected cookie %s=%s", ck.Name, ck.Value)
	}
	if !ck.HttpOnly || !ck.Secure {
		t.Fatal("policy attributes not applied")
	}
	if ck.SameSite != http.SameSiteStrictMode {
		t.Fatalf("samesite = %v", ck.SameSite)
	}
	if ck.MaxAge != int((12 * time.Hour).Seconds()) {
		t.Fatalf("maxage = %d", ck.MaxAge)
	}
}

func TestSessionCookieWriter_ClearMatchesAttributes(t *testing.T) {
	t.Parallel()

	policy := cookiepolicy.Policy{SameSite: cookiepolicy.SameSiteLax, HTTPOnly: true}
	w := NewSessionCookieWriter(policy, "sid", "example.com")

	rec := httptest.NewRecorder()
	w.Clear(rec)

	ck := rec.Result().Cookies()[0]
	if ck.MaxAge != -1 {
		t.Fatalf("deletion cookie maxage = %d, want -1", ck.MaxAge)
	}
	if ck.Domain != "example.com" {
		t.Fatalf("deletion cookie domain = %q", ck.Domain)
	}
	if ck.SameSite != http.SameSiteLaxMode {
		t.Fatalf("deletion cookie samesite = %v", ck.SameSite)
	}
}
