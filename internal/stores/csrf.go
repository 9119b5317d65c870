package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const csrfSchemaVersion = 1

var (
	// ErrCsrfNotFound is returned when no CSRF record exists for an identity.
	ErrCsrfNotFound = errors.New("csrf record not found")
	// ErrCsrfCorrupt is returned when a stored CSRF record fails schema validation.
	ErrCsrfCorrupt = errors.New("csrf record corrupt")
	// ErrCsrfUnavailable indicates the CSRF backend is unreachable.
	ErrCsrfUnavailable = errors.New("csrf backend unavailable")
)

// CsrfRecord is the stored per-identity anti-forgery token.
type CsrfRecord struct {
	Schema    int    `json:"schema"`
	Token     string `json:"token"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// CsrfStore persists CSRF records keyed by identity.
type CsrfStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewCsrfStore creates a CsrfStore under the given Redis key prefix.
func NewCsrfStore(redisClient redis.UniversalClient, prefix string) *CsrfStore {
	return &CsrfStore{redis: redisClient, prefix: prefix}
}

func (s *CsrfStore) key(identity string) string {
	return s.prefix + ":csrf:" + identity
}

// Save writes the record with the given TTL, replacing any previous one.
func (s *CsrfStore) Save(ctx context.Context, identity string, rec *CsrfRecord, ttl time.Duration) error {
	rec.Schema = csrfSchemaVersion

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCsrfCorrupt, err)
	}
	if err := s.redis.Set(ctx, s.key(identity), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCsrfUnavailable, err)
	}
	return nil
}

// Get returns the live record for identity. A stored value that fails
// schema validation is reported as corrupt, never returned half-parsed.
func (s *CsrfStore) Get(ctx context.Context, identity string) (*CsrfRecord, error) {
	data, err := s.redis.Get(ctx, s.key(identity)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCsrfNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrCsrfUnavailable, err)
	}

	var rec CsrfRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCsrfCorrupt, err)
	}
	if rec.Schema != csrfSchemaVersion || rec.Token == "" || rec.ExpiresAt <= 0 {
		return nil, ErrCsrfCorrupt
	}
	if time.Now().Unix() >= rec.ExpiresAt {
		return nil, ErrCsrfNotFound
	}

	return &rec, nil
}

// Delete removes the record; absent records are fine.
func (s *CsrfStore) Delete(ctx context.Context, identity string) error {
	if err := s.redis.Del(ctx, s.key(identity)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCsrfUnavailable, err)
	}
	return nil
}
