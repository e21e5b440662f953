// Package security implements the token-fetch service behind the
// bootstrap endpoint.
package security

import (
	"context"
	"fmt"
	"time"

	httpmetrics "github.com/dropDatabas3/trustgate/internal/http"
	"github.com/dropDatabas3/trustgate/internal/identity"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
	"github.com/dropDatabas3/trustgate/internal/security/antiforgery"
)

// TokenService mints anti-forgery tokens for the authenticated caller.
type TokenService interface {
	FetchToken(ctx context.Context) (*TokenResult, error)
}

// TokenResult is the outcome of a token fetch.
// Token is empty for anonymous callers: not having an identity is a normal
// answer, not a failure.
type TokenResult struct {
	Token         string
	Authenticated bool
	ExpiresIn     time.Duration
}

// TokenDeps contains dependencies for the token service.
type TokenDeps struct {
	Issuer *antiforgery.Issuer
}

type tokenService struct {
	issuer *antiforgery.Issuer
}

// NewTokenService creates a new TokenService.
func NewTokenService(deps TokenDeps) TokenService {
	return &tokenService{issuer: deps.Issuer}
}

// FetchToken issues a token bound to the context's identity.
func (s *tokenService) FetchToken(ctx context.Context) (*TokenResult, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("security.token"),
		logger.Op("FetchToken"),
	)

	id := identity.FromContext(ctx)

	tok, err := s.issuer.Issue(id)
	if err != nil {
		log.Error("token issuance failed", logger.Err(err))
		return nil, fmt.Errorf("issue token: %w", err)
	}

	res := &TokenResult{ExpiresIn: s.issuer.TTL()}
	if tok != nil {
		res.Token = tok.String()
		res.Authenticated = true
		log.Debug("anti-forgery token issued")
	} else {
		log.Debug("anonymous caller; no token minted")
	}

	httpmetrics.RecordTokenIssued(res.Authenticated)
	return res, nil
}
