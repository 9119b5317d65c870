package tanlink

import (
	"context"
	"errors"
	"time"

	"github.com/tanlink/tanlink/internal"
	"github.com/tanlink/tanlink/internal/stores"
)

// EnsureCSRFToken returns the identity's current anti-forgery token,
// minting one if none exists. Idempotent while the record lives.
func (e *Engine) EnsureCSRFToken(ctx context.Context, identity string) (string, error) {
	rec, err := e.csrf.Get(ctx, identity)
	if err == nil {
		return rec.Token, nil
	}
	if !errors.Is(err, stores.ErrCsrfNotFound) {
		return "", backendError(err)
	}

	return e.mintCSRFToken(ctx, identity)
}

// ValidateCSRF compares a presented token against the stored record.
// Absent, stale, and mismatched tokens all reject the same way.
func (e *Engine) ValidateCSRF(ctx context.Context, identity, presented string) error {
	if presented == "" {
		return e.rejectCSRF(ctx, identity)
	}

	rec, err := e.csrf.Get(ctx, identity)
	if err != nil {
		if errors.Is(err, stores.ErrCsrfNotFound) {
			return e.rejectCSRF(ctx, identity)
		}
		return backendError(err)
	}

	if !internal.CTEqualString(presented, rec.Token) {
		return e.rejectCSRF(ctx, identity)
	}

	return nil
}

// RotateCSRF replaces the identity's token after a state-changing
// request so a captured token stops working.
func (e *Engine) RotateCSRF(ctx context.Context, identity string) (string, error) {
	return e.mintCSRFToken(ctx, identity)
}

func (e *Engine) mintCSRFToken(ctx context.Context, identity string) (string, error) {
	value, err := internal.RandomHex(e.config.CSRF.TokenBytes)
	if err != nil {
		return "", backendError(err)
	}

	now := time.Now()
	rec := &stores.CsrfRecord{
		Token:     value,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(e.config.CSRF.TTL).Unix(),
	}
	if err := e.csrf.Save(ctx, identity, rec, e.config.CSRF.TTL); err != nil {
		return "", backendError(err)
	}

	return value, nil
}

func (e *Engine) rejectCSRF(ctx context.Context, identity string) error {
	e.metrics.incCsrfRejected()
	e.emitAudit(ctx, auditCsrfRejected, identity, false, ErrCSRFRejected, nil)
	return ErrCSRFRejected
}
