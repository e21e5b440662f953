package cookiepolicy

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/dropDatabas3/trustgate/internal/config"
)

func TestResolve_Defaults(t *testing.T) {
	t.Parallel()

	prod, err := Resolve(Options{Production: true, Secure: true})
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if prod.SameSite != SameSiteStrict {
		t.Fatalf("production default must be strict, got %q", prod.SameSite)
	}

	dev, err := Resolve(Options{Production: false})
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if dev.SameSite != SameSiteLax {
		t.Fatalf("non-production default must be lax, got %q", dev.SameSite)
	}
}

func TestResolve_ExplicitOverrides(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"strict", "Lax", " NONE "} {
		if _, err := Resolve(Options{Override: raw, Secure: true}); err != nil {
			t.Fatalf("override %q must resolve, got %v", raw, err)
		}
	}
}

func TestResolve_UnknownOverrideIsFatal(t *testing.T) {
	t.Parallel()

	_, err := Resolve(Options{Override: "sideways"})
	if err == nil {
		t.Fatal("expected fatal configuration error for unknown samesite")
	}
	var cfgErr *config.Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *config.Error, got %T", err)
	}
}

func TestResolve_NoneForcesSecure(t *testing.T) {
	t.Parallel()

	p, err := Resolve(Options{Override: "none", Secure: false, Production: true})
	if err != nil {
		t.Fatalf("Resolve err: %v", err)
	}
	if !p.Secure {
		t.Fatal("SameSite=None must force Secure=true")
	}
	if p.Mode() != http.SameSiteNoneMode {
		t.Fatalf("unexpected mode: %v", p.Mode())
	}
}

func TestResolve_HTTPOnlyAlwaysSet(t *testing.T) {
	t.Parallel()

	p, err := Resolve(Options{Override: "lax", MaxAge: 12 * time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	if !p.HTTPOnly {
		t.Fatal("HTTPOnly must be fixed to true")
	}
	if p.MaxAge != 12*time.Hour {
		t.Fatalf("MaxAge not carried: %v", p.MaxAge)
	}
}
