package token

import (
	"context"
	"time"

	"github.com/alumbra-io/aulakey/internal/cache"
)

// Blacklist es el denylist de jti revocados antes de su expiración natural.
//
// Invariante: una entrada nunca sobrevive al access token que revoca. Se
// escribe con TTL exactamente igual al tiempo restante, así el store se
// limpia solo.
type Blacklist struct {
	store cache.Client
	now   func() time.Time
}

// NewBlacklist crea una blacklist sobre el Revocation Store.
func NewBlacklist(store cache.Client) *Blacklist {
	return &Blacklist{store: store, now: time.Now}
}

// Add registra un jti como revocado hasta tokenExpiry.
// Si el token ya expiró no hay nada que proteger: no-op.
func (b *Blacklist) Add(ctx context.Context, jti string, tokenExpiry time.Time) error {
	remaining := tokenExpiry.Sub(b.now())
	if remaining <= 0 {
		return nil
	}
	return b.store.Set(ctx, cache.RevokedJTIKey(jti), "1", remaining)
}

// Contains indica si el jti está revocado. Un error de store se propaga tal
// cual: un timeout no es prueba de ausencia y el caller debe fallar cerrado.
func (b *Blacklist) Contains(ctx context.Context, jti string) (bool, error) {
	_, err := b.store.Get(ctx, cache.RevokedJTIKey(jti))
	if err == nil {
		return true, nil
	}
	if cache.IsNotFound(err) {
		return false, nil
	}
	return false, err
}
