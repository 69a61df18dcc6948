package apikey

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alumbra-io/aulakey/internal/cache"
)

func newTestManager() *Manager {
	return NewManager(cache.NewMemory(""))
}

func TestCreate_Validation(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, err := m.Create(ctx, "u-1", "   ", []string{ScopeCoursesRead}, nil); !errors.Is(err, ErrBlankName) {
		t.Fatalf("expected ErrBlankName, got %v", err)
	}
	if _, err := m.Create(ctx, "u-1", "ci", nil, nil); !errors.Is(err, ErrNoScopes) {
		t.Fatalf("expected ErrNoScopes, got %v", err)
	}
	if _, err := m.Create(ctx, "u-1", "ci", []string{"payments:write"}, nil); !errors.Is(err, ErrScopeNotAllowed) {
		t.Fatalf("expected ErrScopeNotAllowed, got %v", err)
	}
}

func TestCreateValidateRevoke(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	created, err := m.Create(ctx, "u-1", "ci-pipeline", []string{ScopeCoursesRead}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(created.RawSecret, "ak_") {
		t.Fatalf("expected ak_ prefix, got %q", created.RawSecret)
	}

	// Validación inmediata post-create
	rec, err := m.Validate(ctx, created.RawSecret)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if rec.ID != created.ID || rec.OwnerID != "u-1" {
		t.Fatalf("record mismatch: %+v", rec)
	}
	if !HasScope(rec.Scopes, ScopeCoursesRead) {
		t.Fatalf("scopes mismatch: %v", rec.Scopes)
	}

	// Revoke por el dueño
	if err := m.Revoke(ctx, created.ID, "u-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// Validación inmediata post-revoke falla
	if _, err := m.Validate(ctx, created.RawSecret); !errors.Is(err, ErrNotValid) {
		t.Fatalf("expected ErrNotValid after revoke, got %v", err)
	}

	// Segundo revoke: NotFound (el controller lo mapea a 404)
	if err := m.Revoke(ctx, created.ID, "u-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevoke_OwnershipEnforced(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	created, err := m.Create(ctx, "u-1", "ci", []string{ScopeCoursesRead}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.Revoke(ctx, created.ID, "u-2"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	// La key sigue viva
	if _, err := m.Validate(ctx, created.RawSecret); err != nil {
		t.Fatalf("key must survive foreign revoke: %v", err)
	}

	if err := m.Revoke(ctx, "no-such-id", "u-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTouchLastUsed_DoesNotResurrectRevokedKey(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	created, err := m.Create(ctx, "u-1", "ci", []string{ScopeCoursesRead}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rec, err := m.getRecord(ctx, created.ID)
	if err != nil {
		t.Fatalf("getRecord: %v", err)
	}
	if err := m.Revoke(ctx, created.ID, "u-1"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	// El touch que quedó en vuelo de una validación anterior no debe
	// reescribir el registro borrado
	m.touchLastUsed(rec, time.Now().UTC())
	time.Sleep(100 * time.Millisecond)

	ok, err := m.store.Exists(ctx, cache.APIKeyIDKey(created.ID))
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatal("a revoked key record must stay deleted")
	}
}

func TestValidate_DisabledAndExpired(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	exp := time.Now().UTC().Add(50 * time.Millisecond)
	created, err := m.Create(ctx, "u-1", "short-lived", []string{ScopeReportsRead}, &exp)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Validate(ctx, created.RawSecret); err != nil {
		t.Fatalf("validate before expiry: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if _, err := m.Validate(ctx, created.RawSecret); !errors.Is(err, ErrNotValid) {
		t.Fatalf("expected ErrNotValid after expiry, got %v", err)
	}

	// Secretos desconocidos o vacíos
	if _, err := m.Validate(ctx, "ak_totally-unknown"); !errors.Is(err, ErrNotValid) {
		t.Fatalf("expected ErrNotValid, got %v", err)
	}
	if _, err := m.Validate(ctx, ""); !errors.Is(err, ErrNotValid) {
		t.Fatalf("expected ErrNotValid, got %v", err)
	}
}

func TestListForOwner_NewestFirstAndNoSecrets(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	// Controlar el reloj para un orden determinístico
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	m.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Minute)
	}

	first, err := m.Create(ctx, "u-1", "older", []string{ScopeCoursesRead}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := m.Create(ctx, "u-1", "newer", []string{ScopeReportsRead}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.Create(ctx, "u-2", "ajena", []string{ScopeUsersRead}, nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := m.ListForOwner(ctx, "u-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(list))
	}
	if list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("expected newest-first, got %v then %v", list[0].Name, list[1].Name)
	}
}

func TestListForOwner_Empty(t *testing.T) {
	m := newTestManager()
	list, err := m.ListForOwner(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %v", list)
	}
}
