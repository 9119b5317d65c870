package tanlink

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/tanlink/tanlink/internal/rate"
	"github.com/tanlink/tanlink/internal/stores"
	"github.com/tanlink/tanlink/password"
)

// Login verifies credentials and, on success, issues a fresh session
// token that supersedes any previous one for the identity. Unknown
// usernames and wrong passwords are indistinguishable to the caller,
// both in error and in timing.
func (e *Engine) Login(ctx context.Context, username, plaintext string) (string, error) {
	ip := clientIPFromContext(ctx)

	if err := e.limiter.Check(ctx, ip, username); err != nil {
		if errors.Is(err, rate.ErrLocked) {
			e.metrics.incLoginLocked()
			e.emitAudit(ctx, auditLoginLocked, username, false, err, nil)
			return "", ErrLoginLocked
		}
		return "", backendError(err)
	}

	verified, err := e.verifyCredentials(ctx, username, plaintext)
	if err != nil {
		return "", err
	}
	if !verified {
		if err := e.limiter.RecordFailure(ctx, ip, username); err != nil {
			e.logger.Warn("recording login failure", zap.Error(err))
		}
		e.metrics.incLoginFailure()
		e.emitAudit(ctx, auditLoginFailure, username, false, ErrInvalidCredentials, nil)
		return "", ErrInvalidCredentials
	}

	if err := e.limiter.Reset(ctx, ip, username); err != nil {
		e.logger.Warn("resetting login limiter", zap.Error(err))
	}

	signed, err := e.Issue(ctx, username)
	if err != nil {
		return "", err
	}

	e.metrics.incLoginSuccess()
	e.emitAudit(ctx, auditLoginSuccess, username, true, nil, nil)

	return signed, nil
}

// verifyCredentials checks plaintext against the stored credential for
// username. A missing user burns a dummy derivation so the miss costs
// the same as a real verification.
func (e *Engine) verifyCredentials(ctx context.Context, username, plaintext string) (bool, error) {
	if username == "" || plaintext == "" {
		e.hasher.VerifyDummy(plaintext)
		return false, nil
	}

	if username == e.config.Admin.Username {
		ok, err := e.hasher.Verify(plaintext, e.admin)
		if err != nil {
			return false, backendError(err)
		}
		return ok, nil
	}

	rec, err := e.users.Get(ctx, username)
	if err != nil {
		if errors.Is(err, stores.ErrUserNotFound) {
			e.hasher.VerifyDummy(plaintext)
			return false, nil
		}
		return false, backendError(err)
	}

	ok, err := e.hasher.Verify(plaintext, rec.Credential)
	if err != nil {
		return false, backendError(err)
	}
	return ok, nil
}

// Logout revokes the identity's session and anti-forgery token. Safe to
// call when no session exists.
func (e *Engine) Logout(ctx context.Context, identity string) error {
	if err := e.sessions.Delete(ctx, identity); err != nil {
		return backendError(err)
	}
	if err := e.csrf.Delete(ctx, identity); err != nil {
		e.logger.Warn("deleting csrf record on logout", zap.Error(err))
	}

	e.metrics.incSessionRevoked()
	e.emitAudit(ctx, auditSessionRevoked, identity, true, nil, nil)

	return nil
}

// adminRecord assembles the configured admin credential as a stored
// record so it verifies through the same path as user credentials.
func adminRecord(cfg AdminConfig) password.Record {
	return password.Record{
		Algorithm:  password.AlgorithmID,
		Iterations: cfg.Iterations,
		Salt:       cfg.PasswordSalt,
		Hash:       cfg.PasswordHash,
	}
}
