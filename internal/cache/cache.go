// Package cache provee el Revocation Store: un key-value con TTL por entrada
// y sets por usuario, con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Todas las operaciones son atómicas por key. GetDel es el primitivo
// "delete-and-return-previous" del que depende la rotación de refresh tokens:
// ante dos rotaciones concurrentes del mismo token, exactamente una observa
// el valor y la otra recibe ErrNotFound.
package cache

import (
	"context"
	"time"
)

// Client define las operaciones del Revocation Store.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional.
	// Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// GetDel obtiene y elimina un valor en una sola operación atómica.
	// Retorna ErrNotFound si no existe.
	GetDel(ctx context.Context, key string) (string, error)

	// Delete elimina una key. Eliminar una key inexistente no es error.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// SAdd agrega miembros a un set y extiende su TTL.
	// Si ttl es 0, el TTL del set no se modifica.
	SAdd(ctx context.Context, key string, ttl time.Duration, members ...string) error

	// SRem elimina miembros de un set. Miembros ausentes se ignoran.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers retorna los miembros de un set. Un set inexistente
	// retorna slice vacío, no error.
	SMembers(ctx context.Context, key string) ([]string, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Addr     string
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys
}

// Errores de cache.
var (
	ErrNotFound = errNotFound{}
)

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
