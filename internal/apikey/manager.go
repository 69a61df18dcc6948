// Package apikey implementa el segundo tipo de credencial: API keys opacas de
// larga vida con scopes, validadas por re-hash contra el Revocation Store.
//
// El secreto crudo se muestra exactamente una vez en la creación; después
// solo existe su hash SHA-256, indexado por id (gestión) y por hash
// (validación O(1)).
package apikey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alumbra-io/aulakey/internal/cache"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	tokens "github.com/alumbra-io/aulakey/internal/security/tokens"
	"github.com/google/uuid"
)

// Errores del manager. Los services los traducen a la taxonomía HTTP.
var (
	ErrBlankName       = errors.New("apikey: name must not be blank")
	ErrScopeNotAllowed = errors.New("apikey: scope not in allow-list")
	ErrNoScopes        = errors.New("apikey: at least one scope required")
	ErrNotFound        = errors.New("apikey: not found")
	ErrNotOwner        = errors.New("apikey: caller does not own this key")
	ErrNotValid        = errors.New("apikey: key not valid")
)

// secretBytes: entropía del secreto crudo (antes del prefijo "ak_").
const secretBytes = 32

// Record es el registro persistido de una API key. Nunca contiene el secreto
// crudo, solo su hash.
type Record struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"owner_id"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	SecretHash string     `json:"secret_hash"`
}

// Created es el resultado de una creación: la ÚNICA vez que RawSecret existe
// fuera del proceso del caller.
type Created struct {
	ID        string
	RawSecret string
	Name      string
	Scopes    []string
	CreatedAt time.Time
}

// Summary es la vista de listado: sin secreto y sin hash.
type Summary struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Manager administra API keys contra el Revocation Store.
type Manager struct {
	store cache.Client
	now   func() time.Time
}

// NewManager crea un manager.
func NewManager(store cache.Client) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Create valida nombre y scopes, genera el secreto y persiste el record bajo
// ambos índices más el set del owner.
func (m *Manager) Create(ctx context.Context, ownerID, name string, scopes []string, expiresAt *time.Time) (*Created, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBlankName
	}
	if len(scopes) == 0 {
		return nil, ErrNoScopes
	}
	for _, s := range scopes {
		if !ScopeAllowed(s) {
			return nil, fmt.Errorf("%w: %q", ErrScopeNotAllowed, s)
		}
	}

	rawSecret, err := tokens.GenerateAPIKeySecret(secretBytes)
	if err != nil {
		return nil, err
	}
	hash := tokens.SHA256Base64URL(rawSecret)

	now := m.now().UTC()
	rec := Record{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Name:       name,
		Scopes:     scopes,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
		ExpiresAt:  expiresAt,
		SecretHash: hash,
	}

	// TTL: hasta la expiración si la hay, si no la key vive hasta revocarse.
	var ttl time.Duration
	if expiresAt != nil {
		ttl = expiresAt.Sub(now)
		if ttl <= 0 {
			return nil, fmt.Errorf("apikey: expiry must be in the future")
		}
	}

	if err := m.writeRecord(ctx, &rec, ttl); err != nil {
		return nil, err
	}
	if err := m.store.Set(ctx, cache.APIKeyHashKey(hash), rec.ID, ttl); err != nil {
		return nil, err
	}
	if err := m.store.SAdd(ctx, cache.APIKeyUserKey(ownerID), 0, rec.ID); err != nil {
		return nil, err
	}

	return &Created{
		ID:        rec.ID,
		RawSecret: rawSecret,
		Name:      rec.Name,
		Scopes:    rec.Scopes,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Validate re-hashea el secreto y busca por hash. Invalid si no existe, está
// deshabilitada o expiró. El touch de last_used_at sale del critical path
// (fire-and-forget con contexto propio).
func (m *Manager) Validate(ctx context.Context, rawSecret string) (*Record, error) {
	rawSecret = strings.TrimSpace(rawSecret)
	if rawSecret == "" {
		return nil, ErrNotValid
	}

	hash := tokens.SHA256Base64URL(rawSecret)
	id, err := m.store.Get(ctx, cache.APIKeyHashKey(hash))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrNotValid
		}
		return nil, err
	}

	rec, err := m.getRecord(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotValid
		}
		return nil, err
	}

	now := m.now().UTC()
	if !rec.Enabled {
		return nil, ErrNotValid
	}
	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(now) {
		return nil, ErrNotValid
	}

	m.touchLastUsed(rec, now)

	return rec, nil
}

// touchLastUsed actualiza last_used_at sin bloquear la validación.
func (m *Manager) touchLastUsed(rec *Record, now time.Time) {
	upd := *rec
	upd.LastUsedAt = &now
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		// Un Revoke concurrente pudo borrar el registro entre la
		// validación y este write; no hay que resucitarlo.
		ok, err := m.store.Exists(ctx, cache.APIKeyIDKey(upd.ID))
		if err != nil || !ok {
			return
		}

		var ttl time.Duration
		if upd.ExpiresAt != nil {
			ttl = upd.ExpiresAt.Sub(now)
			if ttl <= 0 {
				return
			}
		}
		if err := m.writeRecord(ctx, &upd, ttl); err != nil {
			logger.From(ctx).Debug("apikey last_used_at update failed",
				logger.KeyID(upd.ID), logger.Err(err))
		}
	}()
}

// Revoke elimina la key. NotFound si no existe; Forbidden (ErrNotOwner) si el
// caller no es el dueño. Borra ambos índices y el set del owner.
func (m *Manager) Revoke(ctx context.Context, id, callerOwnerID string) error {
	rec, err := m.getRecord(ctx, id)
	if err != nil {
		return err
	}
	if rec.OwnerID != callerOwnerID {
		return ErrNotOwner
	}

	if err := m.store.Delete(ctx, cache.APIKeyIDKey(id)); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, cache.APIKeyHashKey(rec.SecretHash)); err != nil {
		return err
	}
	return m.store.SRem(ctx, cache.APIKeyUserKey(rec.OwnerID), id)
}

// ListForOwner retorna resúmenes (jamás el secreto ni el hash) ordenados de
// más nuevo a más viejo. Ids stale en el índice se podan lazy.
func (m *Manager) ListForOwner(ctx context.Context, ownerID string) ([]Summary, error) {
	ids, err := m.store.SMembers(ctx, cache.APIKeyUserKey(ownerID))
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(ids))
	var stale []string
	for _, id := range ids {
		rec, err := m.getRecord(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Record expirado naturalmente: podar el índice, no es error
				stale = append(stale, id)
				continue
			}
			return nil, err
		}
		out = append(out, Summary{
			ID:         rec.ID,
			Name:       rec.Name,
			Scopes:     rec.Scopes,
			Enabled:    rec.Enabled,
			CreatedAt:  rec.CreatedAt,
			LastUsedAt: rec.LastUsedAt,
			ExpiresAt:  rec.ExpiresAt,
		})
	}
	if len(stale) > 0 {
		_ = m.store.SRem(ctx, cache.APIKeyUserKey(ownerID), stale...)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Manager) writeRecord(ctx context.Context, rec *Record, ttl time.Duration) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, cache.APIKeyIDKey(rec.ID), string(raw), ttl)
}

func (m *Manager) getRecord(ctx context.Context, id string) (*Record, error) {
	raw, err := m.store.Get(ctx, cache.APIKeyIDKey(id))
	if err != nil {
		if cache.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("apikey: decoding record: %w", err)
	}
	return &rec, nil
}
