package tanlink

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tanlink/tanlink/internal/audit"
	"github.com/tanlink/tanlink/internal/rate"
	"github.com/tanlink/tanlink/internal/stores"
	"github.com/tanlink/tanlink/links"
	"github.com/tanlink/tanlink/password"
	"github.com/tanlink/tanlink/session"
	"github.com/tanlink/tanlink/token"
)

// Engine is the trust core: credential verification, the single live
// session per identity, anti-forgery tokens, and short-link allocation.
// Construct it with New().…Build().
type Engine struct {
	config    Config
	hasher    *password.Hasher
	tokens    *token.Manager
	sessions  *session.Store
	csrf      *stores.CsrfStore
	users     *stores.UserStore
	allocator *links.Allocator
	limiter   rate.Limiter
	auditor   *audit.Dispatcher
	metrics   *Metrics
	logger    *zap.Logger

	// admin is the precomputed credential record for the privileged
	// identity, loaded from configuration rather than the user store.
	admin password.Record
}

// CookieName returns the configured session cookie name.
func (e *Engine) CookieName() string {
	return e.config.Session.CookieName
}

// SessionTTL returns the configured session lifetime.
func (e *Engine) SessionTTL() time.Duration {
	return e.config.Session.TTL
}

// AdminUsername returns the privileged identity.
func (e *Engine) AdminUsername() string {
	return e.config.Admin.Username
}

// Close drains the audit dispatcher. The Redis client is owned by the
// caller and stays open.
func (e *Engine) Close() {
	e.auditor.Close()
}

func backendError(err error) error {
	return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
}
