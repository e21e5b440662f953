// Package security exposes the token bootstrap endpoint.
package security

import (
	"net/http"

	httperrors "github.com/dropDatabas3/trustgate/internal/http/errors"
	svc "github.com/dropDatabas3/trustgate/internal/http/services/security"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
)

// tokenResponse is the wire shape of a token fetch.
// Token is null (not "") for anonymous callers so clients can distinguish
// "not authenticated" from a broken response.
type tokenResponse struct {
	Token         *string `json:"token"`
	Authenticated bool    `json:"authenticated"`
	ExpiresIn     int64   `json:"expires_in"`
}

// TokenController handles GET /v1/security/token.
type TokenController struct {
	service svc.TokenService
}

// NewTokenController creates a new token controller.
func NewTokenController(service svc.TokenService) *TokenController {
	return &TokenController{service: service}
}

// GetToken handles the token fetch request. It must stay reachable without
// a token: it is the bootstrap for everything else.
func (c *TokenController) GetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.GetToken"))

	result, err := c.service.FetchToken(ctx)
	if err != nil {
		log.Error("failed to fetch anti-forgery token", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	resp := tokenResponse{
		Authenticated: result.Authenticated,
		ExpiresIn:     int64(result.ExpiresIn.Seconds()),
	}
	if result.Authenticated {
		resp.Token = &result.Token
	}

	httperrors.WriteJSON(w, http.StatusOK, resp)
}
