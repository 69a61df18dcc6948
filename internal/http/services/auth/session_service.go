package auth

import (
	"context"
	"fmt"
	"strings"

	dto "github.com/alumbra-io/aulakey/internal/http/dto/auth"
	"github.com/alumbra-io/aulakey/internal/metrics"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
)

// Logout es best-effort: blacklistea el jti del access token (aunque la firma
// no verifique, un token malformado no puede quedar vivo por eso) y revoca el
// refresh token si vino. Los errores se loguean y se tragan.
func (s *service) Logout(ctx context.Context, accessToken, refreshToken string) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("Logout"),
	)

	if raw := strings.TrimSpace(accessToken); raw != "" {
		claims, err := s.deps.Codec.DecodeUnverified(raw)
		switch {
		case err != nil:
			log.Debug("access token ilegible en logout", logger.Err(err))
		case claims.JTI == "":
			log.Debug("access token sin jti en logout")
		default:
			if err := s.deps.Blacklist.Add(ctx, claims.JTI, claims.Expiry); err != nil {
				log.Warn("no se pudo blacklistear el jti", logger.JTI(claims.JTI), logger.Err(err))
			} else {
				log.Info("jti blacklisteado", logger.JTI(claims.JTI))
			}
		}
	}

	if id := strings.TrimSpace(refreshToken); id != "" {
		if err := s.deps.Refresh.Revoke(ctx, id); err != nil {
			log.Warn("no se pudo revocar el refresh token", logger.Err(err))
		}
	}
}

func (s *service) Introspect(ctx context.Context, accessToken string) (*dto.MeResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth"),
		logger.Op("Introspect"),
	)

	claims, err := s.deps.Codec.Decode(strings.TrimSpace(accessToken))
	if err != nil {
		log.Debug("access token inválido", logger.Err(err))
		return nil, ErrInvalidToken
	}

	revoked, err := s.deps.Blacklist.Contains(ctx, claims.JTI)
	if err != nil {
		// Fail closed: si la blacklist no responde, el token no se acepta.
		return nil, fmt.Errorf("consultando blacklist: %w", err)
	}
	if revoked {
		log.Info("access token revocado", logger.JTI(claims.JTI))
		metrics.ObserveBlacklistHit()
		return nil, ErrInvalidToken
	}

	return &dto.MeResponse{
		Active: true,
		Sub:    claims.Subject,
		Roles:  claims.Roles,
		Exp:    claims.Expiry.Unix(),
		Iat:    claims.IssuedAt.Unix(),
		Email:  claims.Email,
	}, nil
}
