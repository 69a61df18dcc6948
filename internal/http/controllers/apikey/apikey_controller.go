// Package apikey contiene los controllers de gestión de API keys.
package apikey

import (
	"encoding/json"
	"net/http"
	"strings"

	keys "github.com/alumbra-io/aulakey/internal/apikey"
	dto "github.com/alumbra-io/aulakey/internal/http/dto/apikey"
	httperrors "github.com/alumbra-io/aulakey/internal/http/errors"
	svc "github.com/alumbra-io/aulakey/internal/http/services/apikey"
	"github.com/alumbra-io/aulakey/internal/identity"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Controller maneja el CRUD de API keys y el endpoint de validación.
type Controller struct {
	service svc.Service
}

// NewController crea el controller de API keys.
func NewController(service svc.Service) *Controller {
	return &Controller{service: service}
}

// Create emite una API key nueva para el usuario autenticado.
// POST /v1/api-keys
func (c *Controller) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("APIKeyController.Create"))

	id, ok := c.requireUserIdentity(w, r)
	if !ok {
		return
	}

	var req dto.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		return
	}

	resp, err := c.service.Create(ctx, id.UserID(), req)
	if err != nil {
		c.handleError(w, err, log)
		return
	}

	httperrors.WriteJSON(w, http.StatusCreated, resp)
}

// List devuelve las keys del usuario autenticado, sin secretos.
// GET /v1/api-keys
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("APIKeyController.List"))

	id, ok := c.requireUserIdentity(w, r)
	if !ok {
		return
	}

	summaries, err := c.service.List(ctx, id.UserID())
	if err != nil {
		c.handleError(w, err, log)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, struct {
		Keys []dto.KeySummary `json:"keys"`
	}{Keys: summaries})
}

// Delete revoca una key del usuario autenticado.
// DELETE /v1/api-keys/{id}
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("APIKeyController.Delete"))

	id, ok := c.requireUserIdentity(w, r)
	if !ok {
		return
	}

	keyID := strings.TrimSpace(chi.URLParam(r, "id"))
	if keyID == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest)
		return
	}

	if err := c.service.Revoke(ctx, id.UserID(), keyID); err != nil {
		c.handleError(w, err, log)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Validate verifica una key recibida por query (?key=...) o por el header
// X-API-Key. Pensado para que otros servicios de borde consulten sin
// conocer el hash.
// GET /v1/api-keys/validate?key=...
func (c *Controller) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("APIKeyController.Validate"))

	raw := strings.TrimSpace(r.URL.Query().Get("key"))
	if raw == "" {
		raw = strings.TrimSpace(r.Header.Get("X-API-Key"))
	}
	if raw == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("falta el parámetro key o el header X-API-Key"))
		return
	}

	resp, err := c.service.Validate(ctx, raw)
	switch {
	case err == keys.ErrNotValid:
		httperrors.WriteJSON(w, http.StatusOK, dto.ValidateResponse{Valid: false})
		return
	case err != nil:
		c.handleError(w, err, log)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, resp)
}

// requireUserIdentity exige una identidad JWT: las keys se gestionan con una
// sesión de usuario, nunca con otra key.
func (c *Controller) requireUserIdentity(w http.ResponseWriter, r *http.Request) (*identity.Identity, bool) {
	id := identity.FromContext(r.Context())
	if id == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return nil, false
	}
	if id.Method() != identity.MethodJWT {
		httperrors.WriteError(w, httperrors.ErrForbidden.WithDetail("la gestión de keys requiere sesión de usuario"))
		return nil, false
	}
	return id, true
}

// handleError traduce errores del manager a respuestas HTTP.
func (c *Controller) handleError(w http.ResponseWriter, err error, log *zap.Logger) {
	switch err {
	case keys.ErrBlankName, keys.ErrNoScopes:
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail(err.Error()))
	case keys.ErrScopeNotAllowed:
		httperrors.WriteError(w, httperrors.ErrScopeNotAllowed)
	case keys.ErrNotFound:
		httperrors.WriteError(w, httperrors.ErrNotFound)
	case keys.ErrNotOwner:
		httperrors.WriteError(w, httperrors.ErrForbidden.WithDetail("la key pertenece a otro usuario"))
	case keys.ErrNotValid:
		httperrors.WriteError(w, httperrors.ErrAPIKeyInvalid)
	default:
		log.Error("error inesperado en API keys", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
