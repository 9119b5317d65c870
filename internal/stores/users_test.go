package stores

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/tanlink/tanlink/password"
)

func newUserStoreTest(t *testing.T) (*UserStore, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewUserStore(rdb, "tl")
	return store, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func testCredentialRecord(username string) *CredentialRecord {
	return &CredentialRecord{
		Username: username,
		Credential: password.Record{
			Algorithm:  password.AlgorithmID,
			Iterations: 10_000,
			Salt:       "00112233445566778899aabbccddeeff",
			Hash:       "deadbeefdeadbeefdeadbeefdeadbeef",
		},
	}
}

func TestUserCreateGetRoundtrip(t *testing.T) {
	store, _, done := newUserStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Create(ctx, testCredentialRecord("alice")); err != nil {
		t.Fatalf("create: %v", err)
	}

	rec, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Username != "alice" {
		t.Fatalf("username = %q, want alice", rec.Username)
	}
	if rec.Credential.Iterations != 10_000 {
		t.Fatalf("iterations = %d, want 10000", rec.Credential.Iterations)
	}
}

func TestUserCreateConflict(t *testing.T) {
	store, _, done := newUserStoreTest(t)
	defer done()
	ctx := context.Background()

	if err := store.Create(ctx, testCredentialRecord("alice")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if err := store.Create(ctx, testCredentialRecord("alice")); !errors.Is(err, ErrUserExists) {
		t.Fatalf("got %v, want ErrUserExists", err)
	}

	// The original record must survive the conflicting create.
	rec, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Username != "alice" {
		t.Fatalf("username = %q after conflict", rec.Username)
	}
}

func TestUserGetMissing(t *testing.T) {
	store, _, done := newUserStoreTest(t)
	defer done()

	if _, err := store.Get(context.Background(), "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("got %v, want ErrUserNotFound", err)
	}
}

func TestUserCorruptRecord(t *testing.T) {
	store, rdb, done := newUserStoreTest(t)
	defer done()
	ctx := context.Background()

	seeds := map[string]string{
		"not json":     "garbage",
		"wrong schema": `{"schema":42,"username":"alice","credential":{"salt":"00","hash":"00"}}`,
		"missing hash": `{"schema":1,"username":"alice","credential":{"salt":"00"}}`,
	}
	for name, raw := range seeds {
		if err := rdb.Set(ctx, "tl:users:alice", raw, 0).Err(); err != nil {
			t.Fatalf("%s: seed: %v", name, err)
		}
		if _, err := store.Get(ctx, "alice"); !errors.Is(err, ErrUserCorrupt) {
			t.Errorf("%s: got %v, want ErrUserCorrupt", name, err)
		}
	}
}
