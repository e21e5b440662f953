package antiforgery

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Issuer mints signed anti-forgery tokens bound to an identity.
type Issuer struct {
	secret []byte
	ttl    time.Duration

	// Now is the clock; tests override it. Defaults to time.Now.
	Now func() time.Time
}

// NewIssuer creates an issuer with the process-wide signing secret.
// ttl <= 0 falls back to DefaultTTL.
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, ttl: ttl, Now: time.Now}
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for identityID.
//
// An empty identityID returns (nil, nil): "no established identity" is not
// an issuance failure and callers must be able to tell the two apart.
func (i *Issuer) Issue(identityID string) (*Token, error) {
	if identityID == "" {
		return nil, nil
	}
	// The wire format is colon-delimited; an identity containing the
	// delimiter could not be re-parsed into exactly four segments.
	if strings.Contains(identityID, sep) {
		return nil, fmt.Errorf("antiforgery: identity id must not contain %q", sep)
	}

	var b [randomBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("antiforgery: generate randomness: %w", err)
	}

	t := &Token{
		Random:     hex.EncodeToString(b[:]),
		IssuedAt:   i.Now().Truncate(time.Millisecond),
		IdentityID: identityID,
	}
	t.Signature = hex.EncodeToString(sign(i.secret, t.payload()))
	return t, nil
}

// sign computes HMAC-SHA256(secret, payload).
func sign(secret []byte, payload string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
