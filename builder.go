package tanlink

import (
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tanlink/tanlink/internal/audit"
	"github.com/tanlink/tanlink/internal/rate"
	"github.com/tanlink/tanlink/internal/stores"
	"github.com/tanlink/tanlink/links"
	"github.com/tanlink/tanlink/password"
	"github.com/tanlink/tanlink/session"
	"github.com/tanlink/tanlink/token"
)

// Builder wires an Engine. Redis and a validated Config are required;
// everything else has working defaults.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	limiter   rate.Limiter
	auditSink AuditSink
	metrics   *Metrics
	logger    *zap.Logger
}

// New starts a Builder with default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration. Unset optional fields are
// filled from defaults at Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the backing Redis client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRateLimiter overrides the login limiter. Defaults to the
// in-process sharded limiter; pass a Redis-backed one when multiple
// instances must share lockout state.
func (b *Builder) WithRateLimiter(limiter rate.Limiter) *Builder {
	b.limiter = limiter
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetrics attaches Prometheus collectors. Nil disables recording.
func (b *Builder) WithMetrics(m *Metrics) *Builder {
	b.metrics = m
	return b
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and assembles the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}

	cfg := mergeDefaults(cloneConfig(b.config))
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Iterations: cfg.Password.Iterations,
		SaltLength: cfg.Password.SaltLength,
		KeyLength:  cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		Secret: cfg.Secret,
		TTL:    cfg.Session.TTL,
		Issuer: cfg.Session.Issuer,
		Leeway: cfg.Session.Leeway,
	})
	if err != nil {
		return nil, err
	}

	allocator, err := links.NewAllocator(b.redis, cfg.Session.RedisPrefix, cfg.ShortKey.Alphabet, cfg.ShortKey.Length)
	if err != nil {
		return nil, err
	}
	allocator.OnCollision(b.metrics.incLinkCollision)

	limiter := b.limiter
	if limiter == nil {
		limiter = rate.NewMemoryLimiter(rate.Config{
			Window:    cfg.RateLimit.Window,
			Threshold: cfg.RateLimit.Threshold,
			Lockout:   cfg.RateLimit.Lockout,
		})
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		config:    cfg,
		hasher:    hasher,
		tokens:    tokens,
		sessions:  session.NewStore(b.redis, cfg.Session.RedisPrefix),
		csrf:      stores.NewCsrfStore(b.redis, cfg.Session.RedisPrefix),
		users:     stores.NewUserStore(b.redis, cfg.Session.RedisPrefix),
		allocator: allocator,
		limiter:   limiter,
		metrics:   b.metrics,
		logger:    logger,
		admin:     adminRecord(cfg.Admin),
	}

	e.auditor = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	return e, nil
}
