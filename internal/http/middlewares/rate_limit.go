package middlewares

import (
	"net/http"
	"strconv"

	"github.com/alumbra-io/aulakey/internal/http/errors"
	"github.com/alumbra-io/aulakey/internal/identity"
	"github.com/alumbra-io/aulakey/internal/metrics"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
	"github.com/alumbra-io/aulakey/internal/rate"
)

// RateKeyFunc resuelve la clave de rate limiting para un request.
type RateKeyFunc func(r *http.Request) string

// IdentityRateKey limita por usuario autenticado y cae a la IP del cliente
// para requests anónimos. Debe correr después de los filtros de identidad.
func IdentityRateKey(r *http.Request) string {
	if id := identity.FromContext(r.Context()); id != nil {
		return "uid:" + id.UserID()
	}
	return "ip:" + clientIP(r)
}

// IPPathRateKey limita por IP + path. Útil en endpoints de autenticación,
// donde todavía no hay identidad.
func IPPathRateKey(r *http.Request) string {
	return clientIP(r) + "|" + r.URL.Path
}

// WithRateLimit aplica el limiter con la clave resuelta por keyFn.
// Si el limiter falla, el request pasa: un Redis caído no debe voltear
// el login de todo el campus.
func WithRateLimit(limiter rate.Limiter, keyFn RateKeyFunc) Middleware {
	if keyFn == nil {
		keyFn = IdentityRateKey
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil {
				next.ServeHTTP(w, r)
				return
			}

			res, err := limiter.Allow(r.Context(), keyFn(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter falló, dejando pasar", logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				metrics.ObserveEdgeRejection("rate", "limited")
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds()+0.5)))
				}
				errors.WriteError(w, errors.ErrRateLimitExceeded)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
