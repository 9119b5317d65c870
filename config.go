package tanlink

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tanlink/tanlink/links"
)

// AdminConfig holds the privileged identity's precomputed credential.
// The hash and salt are hex encoded, matching hashgen output.
type AdminConfig struct {
	Username     string
	PasswordHash string
	PasswordSalt string
	Iterations   int
}

// SessionConfig controls token signing and the stored session record.
type SessionConfig struct {
	TTL         time.Duration
	CookieName  string
	RedisPrefix string
	Issuer      string
	Leeway      time.Duration
}

// CSRFConfig controls the per-identity anti-forgery token.
type CSRFConfig struct {
	TTL        time.Duration
	TokenBytes int
}

// RateLimitConfig controls failed-login throttling.
type RateLimitConfig struct {
	Window    time.Duration
	Threshold int
	Lockout   time.Duration
}

// PasswordConfig controls credential derivation for newly created users.
type PasswordConfig struct {
	Iterations int
	SaltLength int
	KeyLength  int
	MinLength  int
}

// ShortKeyConfig controls generated short-link keys.
type ShortKeyConfig struct {
	Length   int
	Alphabet string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Config is the complete engine configuration. Zero values are filled
// from defaults by the builder; Secret and Admin have no defaults.
type Config struct {
	Secret    []byte
	Admin     AdminConfig
	Session   SessionConfig
	CSRF      CSRFConfig
	RateLimit RateLimitConfig
	Password  PasswordConfig
	ShortKey  ShortKeyConfig
	Audit     AuditConfig
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			TTL:         time.Hour,
			CookieName:  "token",
			RedisPrefix: "tl",
			Leeway:      30 * time.Second,
		},
		CSRF: CSRFConfig{
			TTL:        time.Hour,
			TokenBytes: 32,
		},
		RateLimit: RateLimitConfig{
			Window:    time.Minute,
			Threshold: 5,
			Lockout:   5 * time.Minute,
		},
		Password: PasswordConfig{
			Iterations: 120_000,
			SaltLength: 16,
			KeyLength:  32,
			MinLength:  8,
		},
		ShortKey: ShortKeyConfig{
			Length:   links.DefaultKeyLength,
			Alphabet: links.DefaultAlphabet,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

func mergeDefaults(cfg Config) Config {
	def := defaultConfig()
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = def.Session.TTL
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = def.Session.CookieName
	}
	if cfg.Session.RedisPrefix == "" {
		cfg.Session.RedisPrefix = def.Session.RedisPrefix
	}
	if cfg.CSRF.TTL <= 0 {
		cfg.CSRF.TTL = def.CSRF.TTL
	}
	if cfg.CSRF.TokenBytes <= 0 {
		cfg.CSRF.TokenBytes = def.CSRF.TokenBytes
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = def.RateLimit.Window
	}
	if cfg.RateLimit.Threshold <= 0 {
		cfg.RateLimit.Threshold = def.RateLimit.Threshold
	}
	if cfg.RateLimit.Lockout <= 0 {
		cfg.RateLimit.Lockout = def.RateLimit.Lockout
	}
	if cfg.Password.Iterations <= 0 {
		cfg.Password.Iterations = def.Password.Iterations
	}
	if cfg.Password.SaltLength <= 0 {
		cfg.Password.SaltLength = def.Password.SaltLength
	}
	if cfg.Password.KeyLength <= 0 {
		cfg.Password.KeyLength = def.Password.KeyLength
	}
	if cfg.Password.MinLength <= 0 {
		cfg.Password.MinLength = def.Password.MinLength
	}
	if cfg.ShortKey.Length <= 0 {
		cfg.ShortKey.Length = def.ShortKey.Length
	}
	if cfg.ShortKey.Alphabet == "" {
		cfg.ShortKey.Alphabet = def.ShortKey.Alphabet
	}
	if cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
	return cfg
}

func validateConfig(cfg Config) error {
	if len(cfg.Secret) == 0 {
		return fmt.Errorf("config: signing secret is required")
	}
	if cfg.Admin.Username == "" {
		return fmt.Errorf("config: admin username is required")
	}
	if cfg.Admin.PasswordHash == "" || cfg.Admin.PasswordSalt == "" {
		return fmt.Errorf("config: admin password hash and salt are required")
	}
	if cfg.Admin.Iterations <= 0 {
		return fmt.Errorf("config: admin iterations must be positive")
	}
	if cfg.Session.Leeway < 0 {
		return fmt.Errorf("config: session leeway must not be negative")
	}
	if len(cfg.ShortKey.Alphabet) < 2 {
		return fmt.Errorf("config: short-key alphabet needs at least 2 characters")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Secret = make([]byte, len(cfg.Secret))
	copy(out.Secret, cfg.Secret)
	return out
}

// ConfigFromEnv builds a Config from environment variables. Required:
// SECRET_KEY, ADMIN_USERNAME, ADMIN_PASSWORD_HASH, ADMIN_PASSWORD_SALT.
// Optional knobs fall back to defaults when unset. Malformed values are
// startup errors, not silent fallbacks.
func ConfigFromEnv() (Config, error) {
	cfg := defaultConfig()

	secret := os.Getenv("SECRET_KEY")
	if secret == "" {
		return Config{}, fmt.Errorf("config: SECRET_KEY is not set")
	}
	cfg.Secret = []byte(secret)

	cfg.Admin.Username = os.Getenv("ADMIN_USERNAME")
	cfg.Admin.PasswordHash = os.Getenv("ADMIN_PASSWORD_HASH")
	cfg.Admin.PasswordSalt = os.Getenv("ADMIN_PASSWORD_SALT")
	if cfg.Admin.Username == "" {
		return Config{}, fmt.Errorf("config: ADMIN_USERNAME is not set")
	}
	if cfg.Admin.PasswordHash == "" {
		return Config{}, fmt.Errorf("config: ADMIN_PASSWORD_HASH is not set")
	}
	if cfg.Admin.PasswordSalt == "" {
		return Config{}, fmt.Errorf("config: ADMIN_PASSWORD_SALT is not set")
	}
	cfg.Admin.Iterations = cfg.Password.Iterations

	var err error
	if cfg.Admin.Iterations, err = envInt("ADMIN_PASSWORD_ITER", cfg.Admin.Iterations); err != nil {
		return Config{}, err
	}
	if cfg.Session.TTL, err = envDuration("SESSION_TTL", cfg.Session.TTL); err != nil {
		return Config{}, err
	}
	if cfg.CSRF.TTL, err = envDuration("CSRF_TTL", cfg.CSRF.TTL); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.Window, err = envDuration("RATE_LIMIT_WINDOW", cfg.RateLimit.Window); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.Threshold, err = envInt("RATE_LIMIT_THRESHOLD", cfg.RateLimit.Threshold); err != nil {
		return Config{}, err
	}
	if cfg.RateLimit.Lockout, err = envDuration("RATE_LIMIT_LOCKOUT", cfg.RateLimit.Lockout); err != nil {
		return Config{}, err
	}
	if cfg.ShortKey.Length, err = envInt("SHORT_KEY_LENGTH", cfg.ShortKey.Length); err != nil {
		return Config{}, err
	}
	if alphabet := os.Getenv("SHORT_KEY_ALPHABET"); alphabet != "" {
		cfg.ShortKey.Alphabet = alphabet
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		cfg.Session.RedisPrefix = prefix
	}
	if issuer := os.Getenv("TOKEN_ISSUER"); issuer != "" {
		cfg.Session.Issuer = issuer
	}

	return cfg, nil
}

func envInt(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %v", name, err)
	}
	return v, nil
}

func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %v", name, err)
	}
	return v, nil
}
