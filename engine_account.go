package tanlink

import (
	"context"
	"errors"

	"github.com/tanlink/tanlink/internal/stores"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 32
)

// CreateUser derives a credential for plaintext and stores it under
// username. The admin identity lives in configuration and can never be
// shadowed here.
func (e *Engine) CreateUser(ctx context.Context, username, plaintext string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if len(plaintext) < e.config.Password.MinLength {
		return ErrWeakPassword
	}
	if username == e.config.Admin.Username {
		return ErrUsernameExists
	}

	credential, err := e.hasher.Hash(plaintext)
	if err != nil {
		return backendError(err)
	}

	rec := &stores.CredentialRecord{
		Username:   username,
		Credential: credential,
	}
	if err := e.users.Create(ctx, rec); err != nil {
		if errors.Is(err, stores.ErrUserExists) {
			return ErrUsernameExists
		}
		return backendError(err)
	}

	e.emitAudit(ctx, auditUserCreated, username, true, nil, nil)

	return nil
}

func validateUsername(username string) error {
	if len(username) < minUsernameLength || len(username) > maxUsernameLength {
		return ErrInvalidUsername
	}
	for i := 0; i < len(username); i++ {
		c := username[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-' || c == '.':
		default:
			return ErrInvalidUsername
		}
	}
	return nil
}
