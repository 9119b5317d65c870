package rate

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const memoryShards = 16

type attempt struct {
	count       int
	windowStart time.Time
	lockedUntil time.Time
}

type memoryShard struct {
	mu sync.Mutex
	m  map[string]*attempt
}

// MemoryLimiter is the process-local Limiter. State lives in a sharded
// map and is not shared across instances: when the service runs as
// multiple replicas each enforces its own lockouts.
type MemoryLimiter struct {
	config Config
	shards [memoryShards]*memoryShard

	now func() time.Time
}

// NewMemoryLimiter creates an in-memory Limiter.
func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	l := &MemoryLimiter{config: cfg, now: time.Now}
	for i := range l.shards {
		l.shards[i] = &memoryShard{m: make(map[string]*attempt)}
	}
	return l
}

func (l *MemoryLimiter) shard(key string) *memoryShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()%memoryShards]
}

// Check reports whether the pair may attempt a login.
func (l *MemoryLimiter) Check(_ context.Context, callerIP, username string) error {
	key := pairKey(callerIP, username)
	sh := l.shard(key)
	now := l.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.m[key]
	if !ok {
		return nil
	}

	if !rec.lockedUntil.IsZero() {
		if now.Before(rec.lockedUntil) {
			return &LockedError{Until: rec.lockedUntil}
		}
		delete(sh.m, key)
		return nil
	}

	if now.Sub(rec.windowStart) >= l.config.Window {
		delete(sh.m, key)
	}
	return nil
}

// RecordFailure counts one failure and starts a lockout at the threshold.
func (l *MemoryLimiter) RecordFailure(_ context.Context, callerIP, username string) error {
	key := pairKey(callerIP, username)
	sh := l.shard(key)
	now := l.now()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	rec, ok := sh.m[key]
	switch {
	case !ok,
		!rec.lockedUntil.IsZero() && now.After(rec.lockedUntil),
		rec.lockedUntil.IsZero() && now.Sub(rec.windowStart) >= l.config.Window:
		rec = &attempt{count: 0, windowStart: now}
		sh.m[key] = rec
	case !rec.lockedUntil.IsZero():
		// Already locked; failures during lockout do not extend it.
		return nil
	}

	rec.count++
	if rec.count >= l.config.Threshold {
		rec.lockedUntil = now.Add(l.config.Lockout)
	}
	return nil
}

// Reset drops all state for the pair.
func (l *MemoryLimiter) Reset(_ context.Context, callerIP, username string) error {
	key := pairKey(callerIP, username)
	sh := l.shard(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.m, key)
	return nil
}
