package token

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alumbra-io/aulakey/internal/cache"
)

func newTestManager(t *testing.T) (*RefreshManager, cache.Client) {
	t.Helper()
	store := cache.NewMemory("")
	return NewRefreshManager(store, time.Hour), store
}

func TestRefresh_CreateFetch(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "u-1", "a@x.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(id) < 40 {
		t.Fatalf("id too short to be unguessable: %q", id)
	}

	rec, err := m.Fetch(ctx, id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.ID != id || rec.UserID != "u-1" || rec.Email != "a@x.com" {
		t.Fatalf("record mismatch: %+v", rec)
	}
	if !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("expiry must be after creation: %+v", rec)
	}

	if _, err := m.Fetch(ctx, "no-such-token"); !errors.Is(err, ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound, got %v", err)
	}
}

func TestRefresh_RevokeIdempotent(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	id, err := m.Create(ctx, "u-1", "a@x.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := m.Revoke(ctx, id); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Fetch(ctx, id); !errors.Is(err, ErrRefreshNotFound) {
		t.Fatalf("expected not found after revoke, got %v", err)
	}

	// Revocar de nuevo es no-op, no error
	if err := m.Revoke(ctx, id); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	// El índice del usuario no debe conservar el id
	members, err := store.SMembers(ctx, cache.UserTokensKey("u-1"))
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	for _, mID := range members {
		if mID == id {
			t.Fatal("revoked id still present in user index")
		}
	}
}

func TestRefresh_RotateInvalidatesOld(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	oldID, err := m.Create(ctx, "u-1", "a@x.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	newID, err := m.Rotate(ctx, oldID, "u-1", "a@x.com")
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if newID == oldID {
		t.Fatal("rotation must mint a fresh id")
	}

	// El id viejo no vuelve a aceptarse
	if _, err := m.Rotate(ctx, oldID, "u-1", "a@x.com"); !errors.Is(err, ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound for reused id, got %v", err)
	}

	// El nuevo se acepta exactamente una vez más
	if _, err := m.Rotate(ctx, newID, "u-1", "a@x.com"); err != nil {
		t.Fatalf("rotate new id: %v", err)
	}
	if _, err := m.Rotate(ctx, newID, "u-1", "a@x.com"); !errors.Is(err, ErrRefreshNotFound) {
		t.Fatalf("expected ErrRefreshNotFound for twice-used id, got %v", err)
	}
}

func TestRefresh_ConcurrentRotation_OnlyOneWins(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	oldID, err := m.Create(ctx, "u-1", "a@x.com")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const goroutines = 8
	var wg sync.WaitGroup
	errs := make([]error, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.Rotate(ctx, oldID, "u-1", "a@x.com")
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrRefreshNotFound):
			losses++
		default:
			t.Fatalf("unexpected rotation error: %v", err)
		}
	}
	if wins != 1 || losses != goroutines-1 {
		t.Fatalf("expected exactly one winner, got wins=%d losses=%d", wins, losses)
	}
}

func TestRefresh_RevokeAllForUser(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := m.Create(ctx, "u-1", "a@x.com")
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		ids = append(ids, id)
	}
	// Otro usuario no debe verse afectado
	otherID, err := m.Create(ctx, "u-2", "b@x.com")
	if err != nil {
		t.Fatalf("create other: %v", err)
	}

	// Simular un record que expiró naturalmente pero sigue en el índice
	if err := store.Delete(ctx, cache.RefreshKey(ids[1])); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if err := m.RevokeAllForUser(ctx, "u-1"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}

	for _, id := range ids {
		if _, err := m.Fetch(ctx, id); !errors.Is(err, ErrRefreshNotFound) {
			t.Fatalf("token %q should be gone, err=%v", id, err)
		}
	}
	members, _ := store.SMembers(ctx, cache.UserTokensKey("u-1"))
	if len(members) != 0 {
		t.Fatalf("user index should be deleted, got %v", members)
	}

	if _, err := m.Fetch(ctx, otherID); err != nil {
		t.Fatalf("other user's token must survive: %v", err)
	}
}

func TestBlacklist(t *testing.T) {
	store := cache.NewMemory("")
	b := NewBlacklist(store)
	ctx := context.Background()

	ok, err := b.Contains(ctx, "jti-1")
	if err != nil || ok {
		t.Fatalf("empty blacklist: ok=%v err=%v", ok, err)
	}

	if err := b.Add(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("add: %v", err)
	}
	ok, err = b.Contains(ctx, "jti-1")
	if err != nil || !ok {
		t.Fatalf("expected blacklisted: ok=%v err=%v", ok, err)
	}

	// Token ya expirado: no-op, no entra al store
	if err := b.Add(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("add expired: %v", err)
	}
	ok, _ = b.Contains(ctx, "jti-old")
	if ok {
		t.Fatal("expired token must not be stored")
	}
}

func TestBlacklist_EntryExpiresWithToken(t *testing.T) {
	store := cache.NewMemory("")
	b := NewBlacklist(store)
	ctx := context.Background()

	if err := b.Add(ctx, "jti-short", time.Now().Add(40*time.Millisecond)); err != nil {
		t.Fatalf("add: %v", err)
	}
	ok, _ := b.Contains(ctx, "jti-short")
	if !ok {
		t.Fatal("expected blacklisted immediately after add")
	}

	time.Sleep(80 * time.Millisecond)
	ok, _ = b.Contains(ctx, "jti-short")
	if ok {
		t.Fatal("entry must not outlive the token it blacklists")
	}
}
