// Package helpers builds session cookies from the policy resolved at
// startup, so every write path (success and error alike) carries the same
// attributes.
package helpers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/trustgate/internal/security/cookiepolicy"
)

// SessionCookieWriter stamps session cookies with the resolved policy.
type SessionCookieWriter struct {
	policy cookiepolicy.Policy
	name   string
	domain string
}

// NewSessionCookieWriter creates a writer for the given cookie name.
func NewSessionCookieWriter(policy cookiepolicy.Policy, name, domain string) *SessionCookieWriter {
	return &SessionCookieWriter{policy: policy, name: name, domain: domain}
}

// Name returns the cookie name.
func (s *SessionCookieWriter) Name() string { return s.name }

// Set writes the session cookie with the policy's attributes.
func (s *SessionCookieWriter) Set(w http.ResponseWriter, value string) {
	http.SetCookie(w, s.build(value, s.policy.MaxAge))
}

// Clear overwrites the session cookie so the user agent drops it. The
// deletion cookie must match name/domain/samesite/secure or browsers keep
// the original.
func (s *SessionCookieWriter) Clear(w http.ResponseWriter) {
	ck := s.build("", 0)
	ck.Expires = time.Unix(0, 0).UTC()
	ck.MaxAge = -1
	http.SetCookie(w, ck)
}

func (s *SessionCookieWriter) build(value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     s.name,
		Value:    value,
		Path:     "/",
		HttpOnly: s.policy.HTTPOnly,
		Secure:   s.policy.Secure,
		SameSite: s.policy.Mode(),
	}
	if strings.TrimSpace(s.domain) != "" {
		ck.Domain = s.domain
	}
	if ttl > 0 {
		ck.Expires = time.Now().Add(ttl).UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}
