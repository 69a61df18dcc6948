package middlewares

import (
	"net/http"

	"github.com/alumbra-io/aulakey/internal/http/errors"
	"github.com/alumbra-io/aulakey/internal/observability/logger"
)

// WithRecover atrapa panics del handler y responde 500 en vez de tirar la
// conexión.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.From(r.Context()).Error("panic recuperado",
						logger.Path(r.URL.Path),
						logger.Any("panic", rec),
					)
					errors.WriteError(w, errors.ErrInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
