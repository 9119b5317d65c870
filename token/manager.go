package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalid covers bad signatures, malformed tokens, and claim
	// validation failures other than expiry.
	ErrInvalid = errors.New("invalid session token")
	// ErrExpired is returned when the token's exp claim has passed.
	ErrExpired = errors.New("session token expired")
)

// Config holds signing parameters for session tokens.
type Config struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration
}

// Manager mints and parses signed session tokens (HS256). A parsed token
// is only a claim of identity; callers must still confirm it against the
// stored session record.
type Manager struct {
	config Config

	now func() time.Time
}

// Claims is the session token payload. Subject carries the identity.
type Claims struct {
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg, now: time.Now}, nil
}

// SetClock overrides the Manager's time source for both minting and
// claim validation.
func (m *Manager) SetClock(now func() time.Time) {
	if now != nil {
		m.now = now
	}
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// Sign mints a token for identity with iat/nbf = now and
// exp = now + TTL.
func (m *Manager) Sign(identity string) (string, error) {
	if identity == "" {
		return "", errors.New("identity is required")
	}

	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity,
			Issuer:    m.config.Issuer,
			// The jti keeps two mints within one clock second distinct,
			// so a rotation always supersedes the token it replaces.
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.config.Secret)
}

// Parse verifies the signature and registered claims and returns the
// identity. Expiry maps to ErrExpired; every other failure maps to
// ErrInvalid so callers never branch on parser internals.
func (m *Manager) Parse(signed string) (string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(signed, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpired
		}
		return "", ErrInvalid
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", ErrInvalid
	}

	return claims.Subject, nil
}
