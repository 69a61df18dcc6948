// Package auth contiene los services de autenticación.
package auth

import (
	"context"
	"fmt"

	dto "github.com/alumbra-io/aulakey/internal/http/dto/auth"
	"github.com/alumbra-io/aulakey/internal/security/password"
	"github.com/alumbra-io/aulakey/internal/store"
	"github.com/alumbra-io/aulakey/internal/token"
)

// CredentialVerifier compara un password en claro contra el hash almacenado.
type CredentialVerifier func(plain, storedHash string) bool

// Service expone las operaciones de autenticación del surface HTTP.
type Service interface {
	// Login valida credenciales y emite un par access+refresh.
	Login(ctx context.Context, username, secret string) (*dto.TokenResponse, error)
	// Refresh rota el refresh token y emite un par nuevo con los roles actuales.
	Refresh(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	// Logout invalida la sesión de forma best-effort. Nunca falla.
	Logout(ctx context.Context, accessToken, refreshToken string)
	// Introspect verifica un access token y devuelve sus claims activos.
	Introspect(ctx context.Context, accessToken string) (*dto.MeResponse, error)
}

// Errores del service. Los controllers los traducen a AppError.
var (
	ErrMissingFields       = fmt.Errorf("missing required fields")
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials")
	ErrInvalidRefreshToken = fmt.Errorf("invalid or expired refresh token")
	ErrInvalidToken        = fmt.Errorf("invalid access token")
)

// Deps contiene las dependencias del service de autenticación.
type Deps struct {
	Users     store.UserStore
	Verify    CredentialVerifier // nil = argon2id
	Issuer    *token.Issuer
	Codec     *token.Codec
	Refresh   *token.RefreshManager
	Blacklist *token.Blacklist
}

type service struct {
	deps Deps
}

// NewService crea el service de autenticación.
func NewService(d Deps) Service {
	if d.Verify == nil {
		d.Verify = password.Verify
	}
	return &service{deps: d}
}
