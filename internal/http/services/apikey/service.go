// Package apikey es el boundary de servicio entre los controllers HTTP y el
// manager de API keys: valida entrada, traduce DTOs y loguea por operación.
package apikey

import (
	"context"
	"strings"

	"github.com/alumbra-io/aulakey/internal/apikey"
	dto "github.com/alumbra-io/aulakey/internal/http/dto/apikey"
	"github.com/alumbra-io/aulakey/internal/metrics"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
)

// Service expone la gestión de API keys del surface HTTP.
type Service interface {
	Create(ctx context.Context, ownerID string, in dto.CreateRequest) (*dto.CreateResponse, error)
	List(ctx context.Context, ownerID string) ([]dto.KeySummary, error)
	Revoke(ctx context.Context, ownerID, keyID string) error
	Validate(ctx context.Context, rawSecret string) (*dto.ValidateResponse, error)
}

type service struct {
	keys *apikey.Manager
}

// NewService crea el service de API keys.
func NewService(keys *apikey.Manager) Service {
	return &service{keys: keys}
}

func (s *service) Create(ctx context.Context, ownerID string, in dto.CreateRequest) (*dto.CreateResponse, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("apikey"),
		logger.Op("Create"),
		logger.UserID(ownerID),
	)

	created, err := s.keys.Create(ctx, ownerID, strings.TrimSpace(in.Name), in.Scopes, in.ExpiresAt)
	if err != nil {
		log.Debug("creación de API key rechazada", logger.Err(err))
		return nil, err
	}

	log.Info("API key creada", logger.KeyID(created.ID))
	return &dto.CreateResponse{
		ID:        created.ID,
		Name:      created.Name,
		RawKey:    created.RawSecret,
		Scopes:    created.Scopes,
		CreatedAt: created.CreatedAt,
	}, nil
}

func (s *service) List(ctx context.Context, ownerID string) ([]dto.KeySummary, error) {
	summaries, err := s.keys.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	out := make([]dto.KeySummary, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, dto.KeySummary{
			ID:         sum.ID,
			Name:       sum.Name,
			Scopes:     sum.Scopes,
			Enabled:    sum.Enabled,
			CreatedAt:  sum.CreatedAt,
			LastUsedAt: sum.LastUsedAt,
			ExpiresAt:  sum.ExpiresAt,
		})
	}
	return out, nil
}

func (s *service) Revoke(ctx context.Context, ownerID, keyID string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("apikey"),
		logger.Op("Revoke"),
		logger.UserID(ownerID),
		logger.KeyID(keyID),
	)

	if err := s.keys.Revoke(ctx, keyID, ownerID); err != nil {
		log.Debug("revocación rechazada", logger.Err(err))
		return err
	}

	log.Info("API key revocada")
	return nil
}

func (s *service) Validate(ctx context.Context, rawSecret string) (*dto.ValidateResponse, error) {
	rec, err := s.keys.Validate(ctx, strings.TrimSpace(rawSecret))
	if err != nil {
		metrics.ObserveKeyValidation("not_valid")
		return nil, err
	}

	metrics.ObserveKeyValidation("ok")
	return &dto.ValidateResponse{
		Valid:     true,
		ID:        rec.ID,
		OwnerID:   rec.OwnerID,
		Scopes:    rec.Scopes,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}
