package password

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/pbkdf2"

	"github.com/tanlink/tanlink/internal"
)

const (
	// AlgorithmID names the only key-derivation scheme tanlink stores.
	AlgorithmID = "pbkdf2-sha256"

	minIterations = 10_000
	minSaltLength = 16
	minKeyLength  = 16
)

// Config holds key-derivation tuning parameters.
type Config struct {
	Iterations int
	SaltLength int
	KeyLength  int
}

// Record is a stored credential: algorithm tag, per-identity salt,
// iteration count, and the derived hash. The plaintext password is never
// part of it.
type Record struct {
	Algorithm  string `json:"algo"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"` // hex
	Hash       string `json:"hash"` // hex
}

// Hasher derives and verifies PBKDF2-SHA256 credentials. It is the only
// place plaintext passwords touch hashing.
type Hasher struct {
	config Config

	// dummy is a fixed record verified on unknown-user lookups so a miss
	// costs the same derivation work as a real verification.
	dummy Record
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg Config) (*Hasher, error) {
	if cfg.Iterations < minIterations {
		return nil, errors.New("password iterations must be >= 10000")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, errors.New("password salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("password key length must be >= 16")
	}

	h := &Hasher{config: cfg}

	salt, err := internal.RandomBytes(cfg.SaltLength)
	if err != nil {
		return nil, err
	}
	h.dummy = Record{
		Algorithm:  AlgorithmID,
		Iterations: cfg.Iterations,
		Salt:       hex.EncodeToString(salt),
		Hash:       hex.EncodeToString(Derive("decoy", salt, cfg.Iterations, cfg.KeyLength)),
	}

	return h, nil
}

// Derive runs PBKDF2-SHA256 over password with the given salt and
// iteration count, producing keyLength bytes. Deterministic.
func Derive(password string, salt []byte, iterations, keyLength int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha256.New)
}

// Hash derives a fresh Record for password using a new random salt.
func (h *Hasher) Hash(password string) (Record, error) {
	salt, err := internal.RandomBytes(h.config.SaltLength)
	if err != nil {
		return Record{}, err
	}

	hash := Derive(password, salt, h.config.Iterations, h.config.KeyLength)

	return Record{
		Algorithm:  AlgorithmID,
		Iterations: h.config.Iterations,
		Salt:       hex.EncodeToString(salt),
		Hash:       hex.EncodeToString(hash),
	}, nil
}

// Verify recomputes the derivation with the record's own salt and
// iteration count and compares constant-time. A malformed record is an
// error, not a mismatch.
func (h *Hasher) Verify(password string, rec Record) (bool, error) {
	if rec.Algorithm != "" && rec.Algorithm != AlgorithmID {
		return false, errors.New("unsupported credential algorithm")
	}

	iterations := rec.Iterations
	if iterations <= 0 {
		return false, errors.New("invalid credential iterations")
	}

	salt, err := hex.DecodeString(rec.Salt)
	if err != nil || len(salt) == 0 {
		return false, errors.New("invalid credential salt")
	}
	want, err := hex.DecodeString(rec.Hash)
	if err != nil || len(want) == 0 {
		return false, errors.New("invalid credential hash")
	}

	got := Derive(password, salt, iterations, len(want))
	return internal.CTEqual(got, want), nil
}

// VerifyDummy burns one full derivation against a throwaway record.
// Called when a username lookup misses so the response time does not
// reveal whether the account exists.
func (h *Hasher) VerifyDummy(password string) {
	_, _ = h.Verify(password, h.dummy)
}
