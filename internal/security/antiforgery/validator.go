package antiforgery

import (
	"crypto/hmac"
	"encoding/hex"
	"time"
)

// Validator verifies authenticity, binding and freshness of presented tokens.
type Validator struct {
	secret []byte
	ttl    time.Duration

	// Now is the clock; tests override it. Defaults to time.Now.
	Now func() time.Time
}

// NewValidator creates a validator with the same secret and TTL the issuer
// uses. ttl <= 0 falls back to DefaultTTL.
func NewValidator(secret []byte, ttl time.Duration) *Validator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Validator{secret: secret, ttl: ttl, Now: time.Now}
}

// Validate checks raw against the caller's authenticated identity and
// returns nil when the token is acceptable. The returned sub-reasons
// (ErrMalformed, ErrIdentityMismatch, ErrExpired, ErrSignatureMismatch) are
// for internal logging only and must never reach a client verbatim.
//
// Validate is fail-closed: it never panics out to the caller; anything
// unexpected is reported as ErrMalformed.
func (v *Validator) Validate(raw, identityID string) (err error) {
	defer func() {
		if recover() != nil {
			err = ErrMalformed
		}
	}()

	t, err := Parse(raw)
	if err != nil {
		return ErrMalformed
	}

	// Binding check: defeats replay across identities even when the
	// signature itself verifies.
	if t.IdentityID != identityID || identityID == "" {
		return ErrIdentityMismatch
	}

	if v.Now().Sub(t.IssuedAt) > v.ttl {
		return ErrExpired
	}

	got, err := hex.DecodeString(t.Signature)
	if err != nil {
		return ErrMalformed
	}
	want := sign(v.secret, t.payload())

	// hmac.Equal is constant-time and length-safe; plain equality on
	// secret-derived bytes would leak a timing side-channel.
	if !hmac.Equal(got, want) {
		return ErrSignatureMismatch
	}
	return nil
}

// Valid is the boolean form of Validate.
func (v *Validator) Valid(raw, identityID string) bool {
	return v.Validate(raw, identityID) == nil
}
