// Package store expone la interfaz del user store (colaborador externo,
// solo lectura).
package store

import (
	"context"

	"github.com/alumbra-io/aulakey/internal/store/core"
)

// UserStore resuelve usuarios por identificador. Implementaciones: pg
// (producción) y memory (desarrollo/tests).
type UserStore interface {
	// GetByEmail retorna el usuario o core.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*core.User, error)

	// GetByID retorna el usuario o core.ErrNotFound.
	GetByID(ctx context.Context, id string) (*core.User, error)

	// Ping verifica la conexión (health checks).
	Ping(ctx context.Context) error

	// Close libera recursos.
	Close()
}
