package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	dto "github.com/alumbra-io/aulakey/internal/http/dto/auth"
	"github.com/alumbra-io/aulakey/internal/metrics"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	"github.com/alumbra-io/aulakey/internal/store/core"
)

func (s *service) Login(ctx context.Context, username, secret string) (*dto.TokenResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("Login"),
	)

	// Normalización
	email := strings.TrimSpace(strings.ToLower(username))
	if email == "" || secret == "" {
		return nil, ErrMissingFields
	}

	user, err := s.deps.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			// Misma respuesta que password incorrecto, para no filtrar
			// qué cuentas existen.
			log.Debug("usuario no encontrado")
			metrics.ObserveLogin("invalid_credentials")
			return nil, ErrInvalidCredentials
		}
		metrics.ObserveLogin("error")
		return nil, fmt.Errorf("buscando usuario: %w", err)
	}

	log = log.With(logger.UserID(user.ID))

	if !user.Active() {
		log.Info("login rechazado: usuario deshabilitado")
		metrics.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if user.PasswordHash == nil || *user.PasswordHash == "" {
		log.Debug("usuario sin credencial de password")
		metrics.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	if !s.deps.Verify(secret, *user.PasswordHash) {
		log.Debug("password incorrecto")
		metrics.ObserveLogin("invalid_credentials")
		return nil, ErrInvalidCredentials
	}

	resp, err := s.issuePair(ctx, user, dto.GrantPassword)
	if err != nil {
		log.Error("emisión de tokens falló", logger.Err(err))
		metrics.ObserveLogin("error")
		return nil, err
	}

	log.Info("login exitoso", logger.Email(user.Email))
	metrics.ObserveLogin("ok")
	return resp, nil
}

// issuePair emite un access token y un refresh token nuevos para el usuario.
func (s *service) issuePair(ctx context.Context, user *core.User, grant string) (*dto.TokenResponse, error) {
	issued, err := s.deps.Issuer.Issue(user.ID, user.Email, user.Roles)
	if err != nil {
		return nil, fmt.Errorf("emitiendo access token: %w", err)
	}

	refreshID, err := s.deps.Refresh.Create(ctx, user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("creando refresh token: %w", err)
	}

	metrics.ObserveTokenIssued(grant)
	return &dto.TokenResponse{
		AccessToken:  issued.Token,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.deps.Issuer.AccessTTL().Seconds()),
		RefreshToken: refreshID,
	}, nil
}
