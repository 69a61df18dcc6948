package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alumbra-io/aulakey/internal/cache"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	tokens "github.com/alumbra-io/aulakey/internal/security/tokens"
)

// ErrRefreshNotFound indica que el refresh token no existe (rotado, revocado
// o expirado: el store no distingue y no hace falta).
var ErrRefreshNotFound = errors.New("token: refresh token not found")

// refreshIDBytes: 32 bytes de entropía -> id opaco de 43 chars base64url.
const refreshIDBytes = 32

// RefreshRecord es el registro stateful de un refresh token.
// El id opaco es la primary key; se genera fresco y nunca se reutiliza.
type RefreshRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshManager administra el ciclo de vida de refresh tokens contra el
// Revocation Store: ACTIVE -> ROTATED | REVOKED | EXPIRED (todos terminales).
type RefreshManager struct {
	store      cache.Client
	refreshTTL time.Duration
	now        func() time.Time
}

// NewRefreshManager crea un manager con el TTL configurado (ej: 720h).
func NewRefreshManager(store cache.Client, refreshTTL time.Duration) *RefreshManager {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &RefreshManager{store: store, refreshTTL: refreshTTL, now: time.Now}
}

// RefreshTTL devuelve el TTL configurado.
func (m *RefreshManager) RefreshTTL() time.Duration { return m.refreshTTL }

// Create genera un id fresco e inalcanzable por fuerza bruta, escribe el
// record con TTL = vida restante y lo agrega al índice del usuario
// (el TTL del índice se renueva para cubrir al miembro más nuevo).
func (m *RefreshManager) Create(ctx context.Context, userID, email string) (string, error) {
	id, err := tokens.GenerateOpaqueToken(refreshIDBytes)
	if err != nil {
		return "", err
	}

	now := m.now().UTC()
	rec := RefreshRecord{
		ID:        id,
		UserID:    userID,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(m.refreshTTL),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}

	if err := m.store.Set(ctx, cache.RefreshKey(id), string(raw), m.refreshTTL); err != nil {
		return "", err
	}
	if err := m.store.SAdd(ctx, cache.UserTokensKey(userID), m.refreshTTL, id); err != nil {
		// El record quedó escrito pero el índice no: el token sigue siendo
		// usable y solo el bulk-revoke podría no verlo. Mejor deshacer.
		_ = m.store.Delete(ctx, cache.RefreshKey(id))
		return "", err
	}
	return id, nil
}

// Fetch devuelve el record o ErrRefreshNotFound.
func (m *RefreshManager) Fetch(ctx context.Context, tokenID string) (*RefreshRecord, error) {
	raw, err := m.store.Get(ctx, cache.RefreshKey(tokenID))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrRefreshNotFound
		}
		return nil, err
	}
	return decodeRefreshRecord(raw)
}

// Revoke elimina el record y lo saca del índice del usuario.
// Idempotente: revocar un id inexistente es un no-op.
func (m *RefreshManager) Revoke(ctx context.Context, tokenID string) error {
	raw, err := m.store.GetDel(ctx, cache.RefreshKey(tokenID))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil
		}
		return err
	}
	rec, err := decodeRefreshRecord(raw)
	if err != nil {
		// Record corrupto: ya fue eliminado, no hay índice confiable que limpiar.
		logger.From(ctx).Warn("refresh record corrupto al revocar", logger.Err(err))
		return nil
	}
	return m.store.SRem(ctx, cache.UserTokensKey(rec.UserID), tokenID)
}

// Rotate consume el token viejo y crea uno nuevo.
//
// El consumo usa GetDel (delete-and-return-previous atómico): de dos
// rotaciones concurrentes sobre el mismo id, exactamente una observa el
// record; la otra recibe ErrRefreshNotFound. Esto cierra la carrera de
// doble rotación en vez de solo documentarla.
//
// El orden consume-luego-crea es seguro con GetDel: un fallo después del
// consumo pierde un refresh token (el próximo intento reporta not-found)
// pero nunca produce dos tokens vivos a partir de uno, y el id viejo no
// puede resucitar.
func (m *RefreshManager) Rotate(ctx context.Context, oldTokenID, userID, email string) (string, error) {
	raw, err := m.store.GetDel(ctx, cache.RefreshKey(oldTokenID))
	if err != nil {
		if cache.IsNotFound(err) {
			return "", ErrRefreshNotFound
		}
		return "", err
	}
	if rec, derr := decodeRefreshRecord(raw); derr == nil {
		_ = m.store.SRem(ctx, cache.UserTokensKey(rec.UserID), oldTokenID)
	}

	return m.Create(ctx, userID, email)
}

// RevokeAllForUser elimina todos los refresh tokens vigentes del usuario y
// su índice. Tolera ids stale (records ya expirados): borrar una key
// inexistente es un no-op.
func (m *RefreshManager) RevokeAllForUser(ctx context.Context, userID string) error {
	ids, err := m.store.SMembers(ctx, cache.UserTokensKey(userID))
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := m.store.Delete(ctx, cache.RefreshKey(id)); err != nil {
			return err
		}
	}
	return m.store.Delete(ctx, cache.UserTokensKey(userID))
}

func decodeRefreshRecord(raw string) (*RefreshRecord, error) {
	var rec RefreshRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("token: decoding refresh record: %w", err)
	}
	return &rec, nil
}
