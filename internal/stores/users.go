package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/tanlink/tanlink/password"
)

const credentialSchemaVersion = 1

var (
	// ErrUserNotFound is returned when no credential record exists.
	ErrUserNotFound = errors.New("user record not found")
	// ErrUserExists is returned when a conditional create hits an existing username.
	ErrUserExists = errors.New("user record already exists")
	// ErrUserCorrupt is returned when a stored credential fails schema validation.
	ErrUserCorrupt = errors.New("user record corrupt")
	// ErrUsersUnavailable indicates the credential backend is unreachable.
	ErrUsersUnavailable = errors.New("user backend unavailable")
)

// CredentialRecord is the stored credential for one identity.
type CredentialRecord struct {
	Schema     int             `json:"schema"`
	Username   string          `json:"username"`
	Credential password.Record `json:"credential"`
}

// UserStore persists credential records keyed by username.
type UserStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewUserStore creates a UserStore under the given Redis key prefix.
func NewUserStore(redisClient redis.UniversalClient, prefix string) *UserStore {
	return &UserStore{redis: redisClient, prefix: prefix}
}

func (s *UserStore) key(username string) string {
	return s.prefix + ":users:" + username
}

// Create stores the record only if the username is free. The conditional
// write is what prevents two concurrent creates from silently clobbering
// each other.
func (s *UserStore) Create(ctx context.Context, rec *CredentialRecord) error {
	rec.Schema = credentialSchemaVersion

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUserCorrupt, err)
	}

	ok, err := s.redis.SetNX(ctx, s.key(rec.Username), data, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUsersUnavailable, err)
	}
	if !ok {
		return ErrUserExists
	}
	return nil
}

// Get returns the credential record for username.
func (s *UserStore) Get(ctx context.Context, username string) (*CredentialRecord, error) {
	data, err := s.redis.Get(ctx, s.key(username)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUsersUnavailable, err)
	}

	var rec CredentialRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserCorrupt, err)
	}
	if rec.Schema != credentialSchemaVersion || rec.Username == "" ||
		rec.Credential.Salt == "" || rec.Credential.Hash == "" {
		return nil, ErrUserCorrupt
	}

	return &rec, nil
}
