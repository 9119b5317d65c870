package links

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newAllocatorTest(t *testing.T) (*Allocator, *redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	alloc, err := NewAllocator(rdb, "tl", "", 0)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	return alloc, rdb, func() {
		rdb.Close()
		mr.Close()
	}
}

func TestAllocateResolveRoundtrip(t *testing.T) {
	alloc, _, done := newAllocatorTest(t)
	defer done()
	ctx := context.Background()

	key, err := alloc.Allocate(ctx, "https://example.com/long", "")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if len(key) != DefaultKeyLength {
		t.Fatalf("key length = %d, want %d", len(key), DefaultKeyLength)
	}
	for i := 0; i < len(key); i++ {
		if !strings.ContainsRune(DefaultAlphabet, rune(key[i])) {
			t.Fatalf("key %q contains character outside the alphabet", key)
		}
	}

	mapping, err := alloc.Resolve(ctx, key)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mapping.URL != "https://example.com/long" {
		t.Fatalf("url = %q", mapping.URL)
	}
	if mapping.RestrictedIP != "" {
		t.Fatalf("unexpected restriction %q", mapping.RestrictedIP)
	}
}

func TestAllocateCarriesIPRestriction(t *testing.T) {
	alloc, _, done := newAllocatorTest(t)
	defer done()
	ctx := context.Background()

	key, err := alloc.Allocate(ctx, "https://example.com", "10.0.0.1")
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	mapping, err := alloc.Resolve(ctx, key)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mapping.RestrictedIP != "10.0.0.1" {
		t.Fatalf("restriction = %q, want 10.0.0.1", mapping.RestrictedIP)
	}
}

func TestAllocateNamedConflict(t *testing.T) {
	alloc, _, done := newAllocatorTest(t)
	defer done()
	ctx := context.Background()

	if err := alloc.AllocateNamed(ctx, "docs", "https://example.com/a", ""); err != nil {
		t.Fatalf("first named allocate: %v", err)
	}
	if err := alloc.AllocateNamed(ctx, "docs", "https://example.com/b", ""); !errors.Is(err, ErrKeyTaken) {
		t.Fatalf("got %v, want ErrKeyTaken", err)
	}

	// The losing write must not have touched the mapping.
	mapping, err := alloc.Resolve(ctx, "docs")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if mapping.URL != "https://example.com/a" {
		t.Fatalf("url = %q, first writer must win", mapping.URL)
	}
}

func TestAllocateNamedConcurrentSingleWinner(t *testing.T) {
	alloc, _, done := newAllocatorTest(t)
	defer done()
	ctx := context.Background()

	const racers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := alloc.AllocateNamed(ctx, "contested", "https://example.com", "")
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrKeyTaken) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}
}

func TestAllocateNamedValidation(t *testing.T) {
	alloc, _, done := newAllocatorTest(t)
	defer done()
	ctx := context.Background()

	badKeys := []string{"", "has space", "semi;colon", "!!", strings.Repeat("a", 65)}
	for _, key := range badKeys {
		if err := alloc.AllocateNamed(ctx, key, "https://example.com", ""); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("key %q: got %v, want ErrInvalidKey", key, err)
		}
	}

	badURLs := []string{"", "javascript:alert(1)", "ftp://example.com", "https://", "not a url at all\x7f://"}
	for _, raw := range badURLs {
		if err := alloc.AllocateNamed(ctx, "okkey", raw, ""); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("url %q: got %v, want ErrInvalidURL", raw, err)
		}
	}
}

func TestAllocateReportsCollisions(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	// Two-key keyspace, both taken: every random draw collides.
	alloc, err := NewAllocator(rdb, "tl", "ab", 1)
	if err != nil {
		t.Fatalf("NewAllocator: %v", err)
	}
	ctx := context.Background()
	if err := alloc.AllocateNamed(ctx, "a", "https://example.com/a", ""); err != nil {
		t.Fatalf("reserve a: %v", err)
	}
	if err := alloc.AllocateNamed(ctx, "b", "https://example.com/b", ""); err != nil {
		t.Fatalf("reserve b: %v", err)
	}

	var collisions atomic.Int64
	alloc.OnCollision(func() { collisions.Add(1) })

	bounded, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	if _, err := alloc.Allocate(bounded, "https://example.com/c", ""); err == nil {
		t.Fatal("allocation succeeded against a full keyspace")
	}
	if collisions.Load() == 0 {
		t.Fatal("no collisions observed")
	}
}

func TestResolveMissing(t *testing.T) {
	alloc, _, done := newAllocatorTest(t)
	defer done()

	if _, err := alloc.Resolve(context.Background(), "absent7"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := alloc.Resolve(context.Background(), ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty key: got %v, want ErrNotFound", err)
	}
}

func TestPurgeCountsMappingsOnly(t *testing.T) {
	alloc, rdb, done := newAllocatorTest(t)
	defer done()
	ctx := context.Background()

	if err := alloc.AllocateNamed(ctx, "plain", "https://example.com/a", ""); err != nil {
		t.Fatalf("allocate plain: %v", err)
	}
	if err := alloc.AllocateNamed(ctx, "locked", "https://example.com/b", "10.0.0.1"); err != nil {
		t.Fatalf("allocate restricted: %v", err)
	}

	purged, err := alloc.Purge(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 2 {
		t.Fatalf("purged = %d, want 2 (ip companions not counted)", purged)
	}

	keys, err := rdb.Keys(ctx, "tl:links:*").Result()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("leftover keys after purge: %v", keys)
	}

	if _, err := alloc.Resolve(ctx, "plain"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound after purge", err)
	}
}
