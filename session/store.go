package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound is returned when no session record exists for an identity.
	ErrNotFound = errors.New("session record not found")
	// ErrRedisUnavailable indicates the session backend is unreachable.
	ErrRedisUnavailable = errors.New("session backend unavailable")
)

// Store persists the single current session token per identity. The
// stored value is the fact; a signed token that does not byte-match it is
// revoked regardless of its signature.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session Store under the given Redis key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) key(identity string) string {
	return s.prefix + ":nowtoken:" + identity
}

// Save overwrites the current token for identity with the given TTL.
// Overwriting is deliberate: issuing or rotating supersedes whatever
// token was live before (last writer wins).
func (s *Store) Save(ctx context.Context, identity, signedToken string, ttl time.Duration) error {
	if err := s.redis.Set(ctx, s.key(identity), signedToken, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Current returns the live token for identity, or ErrNotFound.
func (s *Store) Current(ctx context.Context, identity string) (string, error) {
	val, err := s.redis.Get(ctx, s.key(identity)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return val, nil
}

// Delete removes the session record. Deleting an absent record is not an
// error; revocation is idempotent.
func (s *Store) Delete(ctx context.Context, identity string) error {
	if err := s.redis.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
