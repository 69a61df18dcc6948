package middlewares

import (
	"net/http"
	"strings"

	"github.com/alumbra-io/aulakey/internal/apikey"
	"github.com/alumbra-io/aulakey/internal/http/errors"
	"github.com/alumbra-io/aulakey/internal/identity"
	"github.com/alumbra-io/aulakey/internal/metrics"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	"github.com/alumbra-io/aulakey/internal/token"
)

// Headers de identidad que este servicio inyecta para los upstreams.
// Nunca se confía en los valores que trae el cliente.
const (
	HeaderAPIKey          = "X-API-Key"
	HeaderUserID          = "X-User-Id"
	HeaderRoles           = "X-Roles"
	HeaderAuthenticatedBy = "X-Authenticated-By"
)

// StripIdentityHeaders borra los headers de identidad que haya mandado el
// cliente. Corre antes que cualquier filtro: un caller externo no puede
// inyectar X-User-Id ni X-Roles a mano.
func StripIdentityHeaders() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del(HeaderUserID)
			r.Header.Del(HeaderRoles)
			r.Header.Del(HeaderAuthenticatedBy)
			next.ServeHTTP(w, r)
		})
	}
}

// APIKeyFilter valida X-API-Key si está presente. Sin header pasa de largo
// (el JWTFilter decide después). Con header inválido corta con 401: una key
// presente pero mala nunca degrada a otro mecanismo.
func APIKeyFilter(keys *apikey.Manager) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			rec, err := keys.Validate(r.Context(), raw)
			if err != nil {
				logger.From(r.Context()).Debug("API key rechazada", logger.Err(err))
				metrics.ObserveEdgeRejection("apikey", "not_valid")
				errors.WriteError(w, errors.ErrAPIKeyInvalid)
				return
			}

			id := identity.ViaAPIKey(rec)
			injectIdentityHeaders(r, id)
			r.Header.Del(HeaderAPIKey)

			next.ServeHTTP(w, r.WithContext(identity.ToContext(r.Context(), id)))
		})
	}
}

// JWTFilter exige un access token válido salvo que un filtro anterior ya haya
// autenticado el request. Acepta Authorization: Bearer y, como fallback, el
// query param access_token.
func JWTFilter(codec *token.Codec, blacklist *token.Blacklist) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity.FromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			raw := bearerToken(r)
			if raw == "" {
				metrics.ObserveEdgeRejection("jwt", "missing")
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				errors.WriteError(w, errors.ErrTokenMissing)
				return
			}

			claims, err := codec.Decode(raw)
			if err != nil {
				logger.From(r.Context()).Debug("access token rechazado", logger.Err(err))
				metrics.ObserveEdgeRejection("jwt", "invalid")
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}

			revoked, err := blacklist.Contains(r.Context(), claims.JTI)
			if err != nil {
				// Fail closed: sin blacklist no se acepta ningún token.
				logger.From(r.Context()).Error("blacklist inaccesible", logger.Err(err))
				errors.WriteError(w, errors.ErrInternalServerError)
				return
			}
			if revoked {
				metrics.ObserveBlacklistHit()
				metrics.ObserveEdgeRejection("jwt", "revoked")
				errors.WriteError(w, errors.ErrTokenInvalid)
				return
			}

			id := identity.ViaToken(claims)
			injectIdentityHeaders(r, id)
			// La credencial original no viaja al upstream.
			r.Header.Del("Authorization")

			next.ServeHTTP(w, r.WithContext(identity.ToContext(r.Context(), id)))
		})
	}
}

// RequireScope corta con 403 si la identidad es una API key sin el scope.
// Las identidades JWT pasan: los scopes solo acotan keys de máquina.
func RequireScope(scope string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := identity.FromContext(r.Context())
			if id == nil {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			if id.Method() == identity.MethodAPIKey && !id.HasScope(scope) {
				metrics.ObserveEdgeRejection("scope", scope)
				errors.WriteError(w, errors.ErrInsufficientScopes)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity corta con 401 si ningún filtro autenticó el request.
// Se usa como cierre de la cadena en rutas protegidas.
func RequireIdentity() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if identity.FromContext(r.Context()) == nil {
				errors.WriteError(w, errors.ErrUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// injectIdentityHeaders escribe los headers de identidad en el request que
// sigue hacia el upstream.
func injectIdentityHeaders(r *http.Request, id *identity.Identity) {
	r.Header.Set(HeaderUserID, id.UserID())
	r.Header.Set(HeaderRoles, strings.Join(id.Roles(), ","))
	r.Header.Set(HeaderAuthenticatedBy, string(id.Method()))
}

// bearerToken extrae el access token del header Authorization o, si no hay,
// del query param access_token.
func bearerToken(r *http.Request) string {
	ah := strings.TrimSpace(r.Header.Get("Authorization"))
	if ah != "" && strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return strings.TrimSpace(ah[len("Bearer "):])
	}
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}
