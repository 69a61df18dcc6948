// Package apikey contiene los DTOs del surface de API keys.
package apikey

import "time"

// CreateRequest es el body de POST /v1/api-keys.
type CreateRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateResponse incluye RawKey: la ÚNICA respuesta que jamás lo contiene.
type CreateResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RawKey    string    `json:"rawKey"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"createdAt"`
}

// KeySummary es la vista de listado: sin raw key y sin hash.
type KeySummary struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"`
	Enabled    bool       `json:"enabled"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// ValidateResponse es el resultado de GET /v1/api-keys/validate.
type ValidateResponse struct {
	Valid     bool       `json:"valid"`
	ID        string     `json:"id,omitempty"`
	OwnerID   string     `json:"ownerId,omitempty"`
	Scopes    []string   `json:"scopes,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}
