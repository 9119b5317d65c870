package links

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/tanlink/tanlink/internal"
)

const (
	// DefaultAlphabet matches the historical short-key character set.
	DefaultAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// DefaultKeyLength is the generated short-key length.
	DefaultKeyLength = 7

	maxNamedKeyLength = 64
)

var (
	// ErrKeyTaken is returned when a named key already has a mapping.
	ErrKeyTaken = errors.New("short key already taken")
	// ErrInvalidKey is returned when a named key fails charset or length rules.
	ErrInvalidKey = errors.New("invalid short key")
	// ErrInvalidURL is returned when a destination is malformed or not http(s).
	ErrInvalidURL = errors.New("invalid destination url")
	// ErrNotFound is returned when no mapping exists for a key.
	ErrNotFound = errors.New("short key not mapped")
	// ErrRedisUnavailable indicates the link backend is unreachable.
	ErrRedisUnavailable = errors.New("link backend unavailable")
)

// reserveScript creates a mapping only if the key is currently free, and
// writes the optional IP restriction in the same atomic step. Two callers
// racing on one key cannot both observe "free" and overwrite each other.
const reserveScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
if ARGV[2] ~= "" then
  redis.call("SET", KEYS[2], ARGV[2])
end
return 1
`

var reserveLua = redis.NewScript(reserveScript)

// Mapping is one short-key record: destination plus an optional caller-IP
// restriction enforced by the HTTP layer. The destination is immutable
// once created.
type Mapping struct {
	Key          string
	URL          string
	RestrictedIP string
}

// Allocator generates short keys and reserves them against Redis with
// conditional writes.
type Allocator struct {
	redis     redis.UniversalClient
	prefix    string
	alphabet  string
	keyLength int

	// onCollision fires once per random key that was already taken.
	onCollision func()
}

// NewAllocator creates an Allocator. alphabet and keyLength fall back to
// the defaults when zero.
func NewAllocator(redisClient redis.UniversalClient, prefix, alphabet string, keyLength int) (*Allocator, error) {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if keyLength <= 0 {
		keyLength = DefaultKeyLength
	}
	if len(alphabet) < 2 {
		return nil, errors.New("short key alphabet too small")
	}
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] > 127 {
			return nil, errors.New("short key alphabet must be ASCII")
		}
	}

	return &Allocator{
		redis:     redisClient,
		prefix:    prefix,
		alphabet:  alphabet,
		keyLength: keyLength,
	}, nil
}

// OnCollision registers fn to run for every random-key collision during
// Allocate. fn must be safe for concurrent use.
func (a *Allocator) OnCollision(fn func()) {
	a.onCollision = fn
}

func (a *Allocator) urlKey(key string) string {
	return a.prefix + ":links:" + key
}

func (a *Allocator) ipKey(key string) string {
	return a.prefix + ":links:" + key + ":ip"
}

// Allocate reserves a random key for destination. On collision it simply
// regenerates and retries: with 62^7 keys the loop is the collision
// strategy, not an error path.
func (a *Allocator) Allocate(ctx context.Context, destination, restrictedIP string) (string, error) {
	if err := validateURL(destination); err != nil {
		return "", err
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		key, err := internal.RandomKey(a.alphabet, a.keyLength)
		if err != nil {
			return "", err
		}

		ok, err := a.reserve(ctx, key, destination, restrictedIP)
		if err != nil {
			return "", err
		}
		if ok {
			return key, nil
		}
		if a.onCollision != nil {
			a.onCollision()
		}
	}
}

// AllocateNamed reserves a caller-chosen key. Validation failures and
// conflicts are reported; an existing mapping is never overwritten.
func (a *Allocator) AllocateNamed(ctx context.Context, key, destination, restrictedIP string) error {
	if err := a.validateKey(key); err != nil {
		return err
	}
	if err := validateURL(destination); err != nil {
		return err
	}

	ok, err := a.reserve(ctx, key, destination, restrictedIP)
	if err != nil {
		return err
	}
	if !ok {
		return ErrKeyTaken
	}
	return nil
}

// Resolve returns the mapping for key. The IP restriction comes back for
// the HTTP layer to enforce; the allocator itself does not compare
// addresses.
func (a *Allocator) Resolve(ctx context.Context, key string) (Mapping, error) {
	if key == "" {
		return Mapping{}, ErrNotFound
	}

	vals, err := a.redis.MGet(ctx, a.urlKey(key), a.ipKey(key)).Result()
	if err != nil {
		return Mapping{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(vals) != 2 || vals[0] == nil {
		return Mapping{}, ErrNotFound
	}

	m := Mapping{Key: key}
	if s, ok := vals[0].(string); ok {
		m.URL = s
	}
	if m.URL == "" {
		return Mapping{}, ErrNotFound
	}
	if s, ok := vals[1].(string); ok {
		m.RestrictedIP = s
	}

	return m, nil
}

// Purge deletes every mapping under the links namespace and returns the
// number of mappings removed (IP companions are not counted).
func (a *Allocator) Purge(ctx context.Context) (int, error) {
	pattern := a.prefix + ":links:*"
	var (
		cursor uint64
		purged int
	)

	for {
		keys, next, err := a.redis.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return purged, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		if len(keys) > 0 {
			if err := a.redis.Del(ctx, keys...).Err(); err != nil {
				return purged, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}
			for _, k := range keys {
				if !strings.HasSuffix(k, ":ip") {
					purged++
				}
			}
		}

		cursor = next
		if cursor == 0 {
			return purged, nil
		}
	}
}

func (a *Allocator) reserve(ctx context.Context, key, destination, restrictedIP string) (bool, error) {
	res, err := reserveLua.Run(
		ctx,
		a.redis,
		[]string{a.urlKey(key), a.ipKey(key)},
		destination,
		restrictedIP,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return res == 1, nil
}

func (a *Allocator) validateKey(key string) error {
	if key == "" || len(key) > maxNamedKeyLength {
		return ErrInvalidKey
	}
	for i := 0; i < len(key); i++ {
		if !strings.ContainsRune(a.alphabet, rune(key[i])) {
			return ErrInvalidKey
		}
	}
	return nil
}

func validateURL(destination string) error {
	u, err := url.Parse(destination)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}
