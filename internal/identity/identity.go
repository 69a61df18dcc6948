// Package identity modela al principal autenticado como unión etiquetada:
// una credencial JWT o una API key, producida por el filtro que matcheó
// primero y consumida de forma uniforme por la inyección de headers.
//
// Nunca estado global: la identidad viaja en el context.Context del request.
package identity

import (
	"context"

	"github.com/alumbra-io/aulakey/internal/apikey"
	"github.com/alumbra-io/aulakey/internal/token"
)

// Method indica el mecanismo con el que se autenticó el request.
type Method string

const (
	MethodJWT    Method = "JWT"
	MethodAPIKey Method = "API_KEY"
)

// RoleAPIClient es el rol sintético fijo de los requests autenticados por key.
const RoleAPIClient = "API_CLIENT"

// Identity es la unión: exactamente uno de Token/Key es no-nil.
type Identity struct {
	method Method
	tok    *token.Claims
	key    *apikey.Record
}

// ViaToken construye una identidad autenticada por JWT.
func ViaToken(claims *token.Claims) *Identity {
	return &Identity{method: MethodJWT, tok: claims}
}

// ViaAPIKey construye una identidad autenticada por API key.
func ViaAPIKey(rec *apikey.Record) *Identity {
	return &Identity{method: MethodAPIKey, key: rec}
}

// Method retorna el mecanismo de autenticación.
func (id *Identity) Method() Method { return id.method }

// UserID retorna el sujeto: sub del token o owner de la key.
func (id *Identity) UserID() string {
	switch id.method {
	case MethodJWT:
		return id.tok.Subject
	case MethodAPIKey:
		return id.key.OwnerID
	}
	return ""
}

// Roles retorna los roles efectivos. Para API keys es el rol sintético fijo.
func (id *Identity) Roles() []string {
	switch id.method {
	case MethodJWT:
		return id.tok.Roles
	case MethodAPIKey:
		return []string{RoleAPIClient}
	}
	return nil
}

// TokenClaims retorna las claims si la identidad vino por JWT, si no nil.
func (id *Identity) TokenClaims() *token.Claims { return id.tok }

// APIKey retorna el record si la identidad vino por key, si no nil.
func (id *Identity) APIKey() *apikey.Record { return id.key }

// HasScope verifica un scope otorgado; siempre false para identidades JWT
// (los scopes son una capability exclusiva de las API keys).
func (id *Identity) HasScope(scope string) bool {
	if id.method != MethodAPIKey {
		return false
	}
	return apikey.HasScope(id.key.Scopes, scope)
}

type ctxKey struct{}

// ToContext inyecta la identidad en el contexto del request.
func ToContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extrae la identidad; nil si el request no está autenticado.
func FromContext(ctx context.Context) *Identity {
	if v := ctx.Value(ctxKey{}); v != nil {
		if id, ok := v.(*Identity); ok {
			return id
		}
	}
	return nil
}
