package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewStore(rdb, "tl")
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestSaveCurrentRoundtrip(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "admin", "token-1", time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Current(ctx, "admin")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got != "token-1" {
		t.Fatalf("current = %q, want token-1", got)
	}
}

func TestCurrentMissing(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()

	if _, err := store.Current(context.Background(), "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestSaveOverwritesPreviousToken(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "admin", "token-1", time.Hour); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.Save(ctx, "admin", "token-2", time.Hour); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, err := store.Current(ctx, "admin")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if got != "token-2" {
		t.Fatalf("current = %q, want token-2", got)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	store, _, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "admin", "token-1", time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Delete(ctx, "admin"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if err := store.Delete(ctx, "admin"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := store.Current(ctx, "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestRecordExpires(t *testing.T) {
	store, mr, done := newStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Save(ctx, "admin", "token-1", time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Current(ctx, "admin"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound after TTL", err)
	}
}
