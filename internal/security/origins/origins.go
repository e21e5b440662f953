// Package origins parses, sanitizes and fail-fast-validates the set of
// origins allowed to make credentialed cross-origin requests. Resolution
// happens once at startup; a malformed entry aborts the process instead of
// being deferred to request time.
package origins

import (
	"net"
	"net/url"
	"strings"

	"github.com/dropDatabas3/trustgate/internal/config"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
)

// DefaultOrigin is the single origin resolved when the configuration is
// empty. It matches the local dev frontend.
const DefaultOrigin = "http://localhost:3000"

// Wildcard admits any origin. Listing it is legal but warned about: it
// turns the credentialed-CORS allowlist into a no-op.
const Wildcard = "*"

// ResolveAllowedOrigins validates the comma-separated raw list and returns
// the sanitized origins in input order (scheme://host[:port], no path, no
// userinfo, no trailing slash). The first malformed entry is a fatal
// configuration error.
func ResolveAllowedOrigins(raw string, production bool) ([]string, error) {
	log := logger.With(logger.Component("origins"))

	candidates := splitCSV(raw)
	if len(candidates) == 0 {
		log.Info("no allowed origins configured; using default",
			logger.Any("origin", DefaultOrigin))
		return []string{DefaultOrigin}, nil
	}

	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == Wildcard {
			log.Warn("allowed origins contain a wildcard; credentialed CORS is effectively unrestricted")
			out = append(out, Wildcard)
			continue
		}

		origin, err := sanitize(c)
		if err != nil {
			return nil, err
		}

		if production {
			if strings.HasPrefix(origin, "http://") {
				log.Warn("plain-http origin allowed in production", logger.Origin(origin))
			}
			if isLoopbackOrigin(origin) {
				log.Warn("loopback origin allowed in production", logger.Origin(origin))
			}
		}

		out = append(out, origin)
	}
	return out, nil
}

// sanitize parses a single candidate and normalizes it to
// scheme://host[:port].
func sanitize(c string) (string, error) {
	u, err := url.Parse(c)
	if err != nil {
		return "", config.Errorf("server.cors_allowed_origins", "malformed origin %q: %v", c, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", config.Errorf("server.cors_allowed_origins", "origin %q: scheme must be http or https", c)
	}
	if u.User != nil {
		// user:pass@host is a classic allowlist-bypass vector.
		return "", config.Errorf("server.cors_allowed_origins", "origin %q: embedded userinfo not allowed", c)
	}
	if u.Host == "" {
		return "", config.Errorf("server.cors_allowed_origins", "origin %q: missing host", c)
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return "", config.Errorf("server.cors_allowed_origins", "origin %q: must not carry a path, query or fragment", c)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Contains reports whether origin is admitted by the resolved set.
// Matching is case-insensitive on the host per RFC 6454; a wildcard entry
// admits everything.
func Contains(allowed []string, origin string) bool {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == Wildcard || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func splitCSV(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isLoopbackOrigin(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback()
	}
	return false
}
