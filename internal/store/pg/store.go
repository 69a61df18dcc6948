// Package pg implementa el user store sobre Postgres (pgx).
package pg

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alumbra-io/aulakey/internal/store/core"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct{ pool *pgxpool.Pool }

// Config de tuning del pool.
type Config struct {
	MaxConns        int
	MinConns        int
	ConnMaxLifetime string
}

// New crea el store y verifica la conexión.
func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime != "" {
		if d, err := time.ParseDuration(cfg.ConnMaxLifetime); err == nil {
			pcfg.MaxConnLifetime = d
		}
	}
	if pcfg.MaxConns == 0 {
		pcfg.MaxConns = 5
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

const userColumns = `id, email, roles, status, password_hash`

func (s *Store) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM app_user WHERE lower(email) = $1 LIMIT 1`
	return s.scanUser(s.pool.QueryRow(ctx, q, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) GetByID(ctx context.Context, id string) (*core.User, error) {
	const q = `SELECT ` + userColumns + ` FROM app_user WHERE id = $1 LIMIT 1`
	return s.scanUser(s.pool.QueryRow(ctx, q, id))
}

func (s *Store) scanUser(row pgx.Row) (*core.User, error) {
	var u core.User
	if err := row.Scan(&u.ID, &u.Email, &u.Roles, &u.Status, &u.PasswordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
