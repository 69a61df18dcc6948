package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	dto "github.com/alumbra-io/aulakey/internal/http/dto/auth"
	httperrors "github.com/alumbra-io/aulakey/internal/http/errors"
	svc "github.com/alumbra-io/aulakey/internal/http/services/auth"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
)

// SessionController maneja logout e introspección.
type SessionController struct {
	service svc.Service
}

// NewSessionController crea el controller de sesión.
func NewSessionController(service svc.Service) *SessionController {
	return &SessionController{service: service}
}

// Logout invalida la sesión. Siempre responde 204: repetir un logout o
// mandar tokens ya muertos no es un error.
// POST /v1/auth/logout
func (c *SessionController) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var body dto.LogoutRequest
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if strings.Contains(ct, "application/json") {
		_ = json.NewDecoder(r.Body).Decode(&body)
	} else {
		_ = r.ParseForm()
		body.RefreshToken = r.PostForm.Get("refresh_token")
	}

	c.service.Logout(ctx, rawBearer(r), body.RefreshToken)

	w.WriteHeader(http.StatusNoContent)
}

// Me introspecciona el access token del caller.
// GET /v1/auth/me
func (c *SessionController) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("SessionController.Me"))

	raw := rawBearer(r)
	if raw == "" {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		httperrors.WriteError(w, httperrors.ErrTokenMissing)
		return
	}

	resp, err := c.service.Introspect(ctx, raw)
	switch {
	case err == svc.ErrInvalidToken:
		// El contrato de introspección: token muerto = activo en falso,
		// nunca 401. Los callers distinguen "sin token" de "token muerto".
		httperrors.WriteJSON(w, http.StatusOK, dto.MeResponse{Active: false})
		return
	case err != nil:
		log.Error("introspección falló", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	httperrors.WriteJSON(w, http.StatusOK, resp)
}

// rawBearer extrae el token del header Authorization sin validarlo.
func rawBearer(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}
