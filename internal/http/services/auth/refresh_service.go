package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dto "github.com/alumbra-io/aulakey/internal/http/dto/auth"
	"github.com/alumbra-io/aulakey/internal/metrics"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	"github.com/alumbra-io/aulakey/internal/store/core"
	"github.com/alumbra-io/aulakey/internal/token"
)

func (s *service) Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("Refresh"),
	)

	tokenID := strings.TrimSpace(refreshToken)
	if tokenID == "" {
		return nil, ErrMissingFields
	}

	rec, err := s.deps.Refresh.Fetch(ctx, tokenID)
	if err != nil {
		if errors.Is(err, token.ErrRefreshNotFound) {
			log.Debug("refresh token desconocido o ya consumido")
			metrics.ObserveRotation("not_found")
			return nil, ErrInvalidRefreshToken
		}
		metrics.ObserveRotation("error")
		return nil, fmt.Errorf("buscando refresh token: %w", err)
	}

	log = log.With(logger.UserID(rec.UserID))

	// Chequeo defensivo: el TTL del store debería haber expirado la entrada.
	if !rec.ExpiresAt.IsZero() && time.Now().After(rec.ExpiresAt) {
		log.Info("refresh token vencido pero todavía presente, revocando")
		_ = s.deps.Refresh.Revoke(ctx, tokenID)
		metrics.ObserveRotation("expired")
		return nil, ErrInvalidRefreshToken
	}

	// Los roles se leen del store en cada refresh, no del token viejo. Un
	// usuario deshabilitado pierde la sesión acá.
	user, err := s.deps.Users.GetByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			log.Info("usuario del refresh token ya no existe, revocando")
			_ = s.deps.Refresh.Revoke(ctx, tokenID)
			metrics.ObserveRotation("not_found")
			return nil, ErrInvalidRefreshToken
		}
		metrics.ObserveRotation("error")
		return nil, fmt.Errorf("buscando usuario: %w", err)
	}
	if !user.Active() {
		log.Info("refresh rechazado: usuario deshabilitado, revocando")
		_ = s.deps.Refresh.Revoke(ctx, tokenID)
		metrics.ObserveRotation("not_found")
		return nil, ErrInvalidRefreshToken
	}

	// Rotate consume el token viejo de forma atómica: si dos requests llegan
	// con el mismo token, exactamente uno pasa de acá.
	newID, err := s.deps.Refresh.Rotate(ctx, tokenID, user.ID, user.Email)
	if err != nil {
		if errors.Is(err, token.ErrRefreshNotFound) {
			log.Debug("rotación perdida contra un request concurrente")
			metrics.ObserveRotation("not_found")
			return nil, ErrInvalidRefreshToken
		}
		metrics.ObserveRotation("error")
		return nil, fmt.Errorf("rotando refresh token: %w", err)
	}

	issued, err := s.deps.Issuer.Issue(user.ID, user.Email, user.Roles)
	if err != nil {
		// El refresh nuevo quedaría huérfano, mejor limpiarlo.
		_ = s.deps.Refresh.Revoke(ctx, newID)
		metrics.ObserveRotation("error")
		return nil, fmt.Errorf("emitiendo access token: %w", err)
	}

	log.Info("refresh token rotado")
	metrics.ObserveRotation("ok")
	metrics.ObserveTokenIssued(dto.GrantRefreshToken)

	return &dto.TokenResponse{
		AccessToken:  issued.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.deps.Issuer.AccessTTL().Seconds()),
		RefreshToken: newID,
	}, nil
}
