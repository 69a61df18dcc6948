// Package auth contiene los controllers de autenticación.
package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	dto "github.com/alumbra-io/aulakey/internal/http/dto/auth"
	httperrors "github.com/alumbra-io/aulakey/internal/http/errors"
	svc "github.com/alumbra-io/aulakey/internal/http/services/auth"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	"go.uber.org/zap"
)

// TokenController maneja POST /v1/auth/token.
type TokenController struct {
	service svc.Service
}

// NewTokenController crea el controller de emisión.
func NewTokenController(service svc.Service) *TokenController {
	return &TokenController{service: service}
}

// Token emite un par access+refresh según grant_type.
// POST /v1/auth/token
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.Token"))

	req, err := parseTokenRequest(r)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	grant := strings.TrimSpace(req.GrantType)
	if grant == "" {
		// Compatibilidad con clientes viejos que solo mandan user/pass.
		grant = dto.GrantPassword
	}
	log = log.With(logger.Grant(grant))

	var resp *dto.TokenResponse
	switch grant {
	case dto.GrantPassword:
		resp, err = c.service.Login(ctx, req.Username, req.Password)
	case dto.GrantRefreshToken:
		resp, err = c.service.Refresh(ctx, req.RefreshToken)
	default:
		httperrors.WriteError(w, httperrors.ErrUnsupportedGrant.WithDetail(grant))
		return
	}
	if err != nil {
		c.handleError(w, err, log)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, resp)
}

// parseTokenRequest junta los campos con precedencia form > query > JSON.
func parseTokenRequest(r *http.Request) (dto.TokenRequest, error) {
	var req dto.TokenRequest

	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(ct, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, err
		}
	} else {
		// ParseForm también carga la query, pero PostForm la separa.
		_ = r.ParseForm()
	}

	overlay := func(dst *string, name string) {
		if v := r.URL.Query().Get(name); v != "" {
			*dst = v
		}
		if v := r.PostForm.Get(name); v != "" {
			*dst = v
		}
	}
	overlay(&req.GrantType, "grant_type")
	overlay(&req.Username, "username")
	overlay(&req.Password, "password")
	overlay(&req.RefreshToken, "refresh_token")

	return req, nil
}

// handleError traduce errores del service a respuestas HTTP.
func (c *TokenController) handleError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch err {
	case svc.ErrMissingFields:
		httperrors.WriteError(w, httperrors.ErrMissingFields)
	case svc.ErrInvalidCredentials:
		httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
	case svc.ErrInvalidRefreshToken:
		httperrors.WriteError(w, httperrors.ErrTokenInvalid.WithDetail("refresh token inválido o expirado"))
	default:
		log.Error("error inesperado emitiendo tokens", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
