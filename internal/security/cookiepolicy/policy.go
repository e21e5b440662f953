// Package cookiepolicy derives the session-cookie security attributes from
// configuration, once, at process start. The resolved policy is immutable
// and must be applied to every session cookie the service writes, on every
// response path.
package cookiepolicy

import (
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/trustgate/internal/config"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
)

// SameSite is the cookie SameSite attribute.
type SameSite string

const (
	SameSiteStrict SameSite = "strict"
	SameSiteLax    SameSite = "lax"
	SameSiteNone   SameSite = "none"
)

// Policy holds the resolved session-cookie attributes.
// HTTPOnly is fixed: a session cookie readable from script defeats the
// point of the gateway.
type Policy struct {
	SameSite SameSite
	Secure   bool
	HTTPOnly bool
	MaxAge   time.Duration
}

// Mode converts the resolved SameSite to the net/http representation.
func (p Policy) Mode() http.SameSite {
	switch p.SameSite {
	case SameSiteStrict:
		return http.SameSiteStrictMode
	case SameSiteNone:
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// Options are the configuration inputs for Resolve.
type Options struct {
	// Override is the explicit SameSite value from config; empty means
	// "pick the mode-dependent default".
	Override string

	// Secure is the configured Secure flag.
	Secure bool

	// Production selects the strict default and the hardening warnings.
	Production bool

	// MaxAge is the session cookie lifetime.
	MaxAge time.Duration
}

// Resolve computes the session-cookie policy. An unknown explicit override
// is a fatal configuration error: the process must not start with a cookie
// policy it cannot interpret.
//
// Resolve enforces SameSite=None => Secure. When that forces a configured
// Secure=false to true it emits a warning rather than failing, so a
// misconfigured deployment degrades to the safer attribute set.
func Resolve(opts Options) (Policy, error) {
	log := logger.With(logger.Component("cookiepolicy"))

	ss, err := parseSameSite(opts.Override, opts.Production)
	if err != nil {
		return Policy{}, err
	}

	p := Policy{
		SameSite: ss,
		Secure:   opts.Secure,
		HTTPOnly: true,
		MaxAge:   opts.MaxAge,
	}

	if p.SameSite == SameSiteNone && !p.Secure {
		log.Warn("session cookie: SameSite=None requires Secure; forcing Secure=true",
			logger.Any("production", opts.Production))
		p.Secure = true
	}

	if opts.Production && p.SameSite == SameSiteLax {
		// Advisory only: lax still permits top-level cross-site GET navigation.
		log.Warn("session cookie: SameSite=lax in production; consider strict")
	}

	return p, nil
}

// parseSameSite maps the config string to a SameSite value.
// Empty input selects the mode-dependent default: strict in production,
// lax elsewhere.
func parseSameSite(s string, production bool) (SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		if production {
			return SameSiteStrict, nil
		}
		return SameSiteLax, nil
	case "strict":
		return SameSiteStrict, nil
	case "lax":
		return SameSiteLax, nil
	case "none":
		return SameSiteNone, nil
	default:
		return "", config.Errorf("session.samesite", "must be one of strict|lax|none, got %q", s)
	}
}
