package tanlink

import (
	"context"
	"errors"

	"github.com/tanlink/tanlink/internal"
	"github.com/tanlink/tanlink/session"
	"github.com/tanlink/tanlink/token"
)

// Issue signs a token for identity and stores it as the current
// session, superseding any previous one.
func (e *Engine) Issue(ctx context.Context, identity string) (string, error) {
	signed, err := e.tokens.Sign(identity)
	if err != nil {
		return "", backendError(err)
	}
	if err := e.sessions.Save(ctx, identity, signed, e.tokens.TTL()); err != nil {
		return "", backendError(err)
	}

	e.metrics.incSessionIssued()

	return signed, nil
}

// Authenticate validates a presented token and returns the identity it
// belongs to. The signature proves who minted the token; only a byte
// match against the stored record proves it is still the live session.
func (e *Engine) Authenticate(ctx context.Context, presented string) (string, error) {
	if presented == "" {
		return "", ErrSessionMissing
	}

	identity, err := e.tokens.Parse(presented)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return "", ErrSessionExpired
		}
		return "", ErrSessionInvalid
	}

	current, err := e.sessions.Current(ctx, identity)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return "", ErrSessionRevoked
		}
		return "", backendError(err)
	}

	if !internal.CTEqualString(presented, current) {
		return "", ErrSessionRevoked
	}

	return identity, nil
}

// AuthorizeAdmin confirms identity is the privileged one.
func (e *Engine) AuthorizeAdmin(identity string) error {
	if identity != e.config.Admin.Username {
		return ErrIdentityMismatch
	}
	return nil
}

// Rotate mints a replacement token for an already-authenticated
// identity and stores it, invalidating the one presented. Concurrent
// rotations race benignly; the last stored token wins and the losers
// surface as revoked on their next request.
func (e *Engine) Rotate(ctx context.Context, identity string) (string, error) {
	signed, err := e.tokens.Sign(identity)
	if err != nil {
		return "", backendError(err)
	}
	if err := e.sessions.Save(ctx, identity, signed, e.tokens.TTL()); err != nil {
		return "", backendError(err)
	}

	e.metrics.incSessionRotated()

	return signed, nil
}
