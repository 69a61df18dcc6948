// Package router define las rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/alumbra-io/aulakey/internal/apikey"
	apikeyctrl "github.com/alumbra-io/aulakey/internal/http/controllers/apikey"
	authctrl "github.com/alumbra-io/aulakey/internal/http/controllers/auth"
	healthctrl "github.com/alumbra-io/aulakey/internal/http/controllers/health"
	httperrors "github.com/alumbra-io/aulakey/internal/http/errors"
	mw "github.com/alumbra-io/aulakey/internal/http/middlewares"
	"github.com/alumbra-io/aulakey/internal/rate"
	"github.com/alumbra-io/aulakey/internal/token"
	"github.com/go-chi/chi/v5"
)

// Deps contiene todo lo que el router necesita para armar el árbol de rutas.
type Deps struct {
	Token   *authctrl.TokenController
	Session *authctrl.SessionController
	APIKeys *apikeyctrl.Controller
	Health  *healthctrl.Controller

	Keys      *apikey.Manager
	Codec     *token.Codec
	Blacklist *token.Blacklist

	// AuthLimiter protege los endpoints públicos de autenticación por IP.
	// APILimiter protege las rutas autenticadas por usuario. Ambos opcionales.
	AuthLimiter rate.Limiter
	APILimiter  rate.Limiter

	// Metrics es el handler de /metrics; nil lo deshabilita.
	Metrics http.Handler

	// Downstream es el handler aguas abajo que la cadena de borde protege,
	// típicamente un reverse proxy hacia los servicios del campus. Recibe
	// los requests con X-User-Id, X-Roles y X-Authenticated-By ya puestos.
	// Nil deshabilita el montaje.
	Downstream http.Handler
}

// New arma el router con la cadena de borde completa.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.WithRequestID(),
		mw.StripIdentityHeaders(),
		mw.WithLogging(),
		mw.WithMetrics(),
		mw.WithRecover(),
	)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	r.Get("/healthz", deps.Health.Health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(v1 chi.Router) {
		// Endpoints públicos de autenticación: sin identidad previa,
		// limitados por IP + path.
		v1.Group(func(pub chi.Router) {
			if deps.AuthLimiter != nil {
				pub.Use(mw.WithRateLimit(deps.AuthLimiter, mw.IPPathRateKey))
			}
			pub.Post("/auth/token", deps.Token.Token)
			pub.Post("/auth/logout", deps.Session.Logout)
			pub.Get("/auth/me", deps.Session.Me)
		})

		// Validación servicio a servicio: la key es la credencial, no hace
		// falta sesión.
		v1.Group(func(s2s chi.Router) {
			if deps.AuthLimiter != nil {
				s2s.Use(mw.WithRateLimit(deps.AuthLimiter, mw.IPPathRateKey))
			}
			s2s.Get("/api-keys/validate", deps.APIKeys.Validate)
		})

		// Rutas protegidas: primero la key, después el JWT, y recién con
		// identidad resuelta el rate limit por usuario.
		v1.Group(func(priv chi.Router) {
			priv.Use(
				mw.APIKeyFilter(deps.Keys),
				mw.JWTFilter(deps.Codec, deps.Blacklist),
				mw.RequireIdentity(),
			)
			if deps.APILimiter != nil {
				priv.Use(mw.WithRateLimit(deps.APILimiter, mw.IdentityRateKey))
			}
			priv.Post("/api-keys", deps.APIKeys.Create)
			priv.Get("/api-keys", deps.APIKeys.List)
			priv.Delete("/api-keys/{id}", deps.APIKeys.Delete)

			if deps.Downstream != nil {
				priv.Mount("/campus", deps.Downstream)
			}
		})
	})

	return r
}
