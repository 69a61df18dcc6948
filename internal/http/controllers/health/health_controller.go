// Package health expone el endpoint de liveness/readiness.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/alumbra-io/aulakey/internal/cache"
	httperrors "github.com/alumbra-io/aulakey/internal/http/errors"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	"github.com/alumbra-io/aulakey/internal/store"
)

// Controller responde /healthz con el estado de las dependencias.
type Controller struct {
	users store.UserStore
	cache cache.Client
}

func NewController(users store.UserStore, c cache.Client) *Controller {
	return &Controller{users: users, cache: c}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health verifica store y cache con un timeout corto.
// GET /healthz
func (c *Controller) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	log := logger.From(r.Context()).With(logger.Layer("controller"), logger.Op("Health"))

	resp := healthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK

	if c.users != nil {
		if err := c.users.Ping(ctx); err != nil {
			log.Warn("user store no responde", logger.Err(err))
			resp.Checks["store"] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["store"] = "ok"
		}
	}

	if c.cache != nil {
		if err := c.cache.Ping(ctx); err != nil {
			log.Warn("cache no responde", logger.Err(err))
			resp.Checks["cache"] = "down"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			resp.Checks["cache"] = "ok"
		}
	}

	httperrors.WriteJSON(w, status, resp)
}
