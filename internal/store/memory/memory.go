// Package memory implementa un user store en memoria para desarrollo y tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/alumbra-io/aulakey/internal/store/core"
)

type Store struct {
	mu    sync.RWMutex
	byID  map[string]*core.User
	byEml map[string]*core.User
}

func New() *Store {
	return &Store{
		byID:  make(map[string]*core.User),
		byEml: make(map[string]*core.User),
	}
}

// Put registra (o reemplaza) un usuario. Solo para seeding.
func (s *Store) Put(u *core.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.byID[u.ID] = &cp
	s.byEml[strings.ToLower(u.Email)] = &cp
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byEml[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() {}
