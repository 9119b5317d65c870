package tanlink

import (
	"errors"

	"github.com/tanlink/tanlink/links"
)

var (
	// ErrSessionMissing is returned when no session token was presented.
	ErrSessionMissing = errors.New("session token missing")
	// ErrSessionInvalid is returned on bad signatures or malformed claims.
	ErrSessionInvalid = errors.New("session token invalid")
	// ErrSessionExpired is returned when the token's expiry has passed.
	ErrSessionExpired = errors.New("session token expired")
	// ErrSessionRevoked is returned when a well-signed token no longer
	// matches the stored session record (logout, rotation elsewhere, or
	// a newer login superseded it).
	ErrSessionRevoked = errors.New("session revoked")
	// ErrIdentityMismatch is returned when a valid session belongs to a
	// non-privileged identity on a privileged surface.
	ErrIdentityMismatch = errors.New("identity not privileged")
	// ErrInvalidCredentials covers both unknown usernames and wrong
	// passwords; callers never learn which.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginLocked is returned while a failed-attempt lockout is active.
	ErrLoginLocked = errors.New("login temporarily locked")

	// ErrCSRFRejected is returned when an anti-forgery token is absent,
	// stale, or does not match.
	ErrCSRFRejected = errors.New("csrf token rejected")
	// ErrIPRestricted is returned when a link's caller-IP restriction
	// does not match the requester.
	ErrIPRestricted = errors.New("link restricted to another address")

	// ErrInvalidUsername is returned when a username fails charset or
	// length rules.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrWeakPassword is returned when a password is below the minimum length.
	ErrWeakPassword = errors.New("password too short")
	// ErrUsernameExists is returned when creating an identity that is taken.
	ErrUsernameExists = errors.New("username already exists")

	// ErrBackendUnavailable wraps any key-value backend failure, including
	// stored records that fail schema validation.
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Link allocation errors surface unchanged from the links package.
var (
	ErrKeyTaken     = links.ErrKeyTaken
	ErrInvalidKey   = links.ErrInvalidKey
	ErrInvalidURL   = links.ErrInvalidURL
	ErrLinkNotFound = links.ErrNotFound
)

// IsAuthenticationFailure reports whether err should send the caller back
// to the login surface.
func IsAuthenticationFailure(err error) bool {
	return errors.Is(err, ErrSessionMissing) ||
		errors.Is(err, ErrSessionInvalid) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrSessionRevoked) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrLoginLocked)
}

// IsAuthorizationFailure reports whether err maps to 403.
func IsAuthorizationFailure(err error) bool {
	return errors.Is(err, ErrCSRFRejected) ||
		errors.Is(err, ErrIdentityMismatch) ||
		errors.Is(err, ErrIPRestricted)
}

// IsValidationFailure reports whether err maps to 400.
func IsValidationFailure(err error) bool {
	return errors.Is(err, ErrInvalidUsername) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrInvalidURL)
}

// IsConflictFailure reports whether err maps to 409.
func IsConflictFailure(err error) bool {
	return errors.Is(err, ErrUsernameExists) ||
		errors.Is(err, ErrKeyTaken)
}

// IsNotFoundFailure reports whether err maps to 404.
func IsNotFoundFailure(err error) bool {
	return errors.Is(err, ErrLinkNotFound)
}

// IsBackendFailure reports whether err maps to 500.
func IsBackendFailure(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}
