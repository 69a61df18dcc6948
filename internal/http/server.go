// Package http aloja el server y su ciclo de vida.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/alumbra-io/aulakey/internal/observability/logger"
	"golang.org/x/sync/errgroup"
)

// Server envuelve http.Server con apagado ordenado.
type Server struct {
	srv *http.Server
}

// NewServer crea el server con timeouts razonables para un servicio de borde.
func NewServer(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Run sirve hasta que el contexto se cancele; después drena conexiones con
// una ventana de 10 segundos.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.L().Info("server escuchando", logger.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.L().Info("apagando server")
		return s.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
