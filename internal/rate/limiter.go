package rate

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrLocked is returned by Check while a lockout is active. Use
	// errors.As with *LockedError to read the expiry.
	ErrLocked = errors.New("login attempts locked")
	// ErrUnavailable indicates the limiter backend is unreachable.
	ErrUnavailable = errors.New("rate limiter backend unavailable")
)

// LockedError carries the instant a lockout expires.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("login attempts locked until %s", e.Until.Format(time.RFC3339))
}

func (e *LockedError) Unwrap() error { return ErrLocked }

// Config holds failed-attempt tracking parameters.
type Config struct {
	Window    time.Duration // failure counting window
	Threshold int           // failures within the window that trigger lockout
	Lockout   time.Duration // how long a lockout lasts
}

// Limiter tracks failed login attempts per (caller identity, username)
// pair and enforces temporary lockout. Implementations are injected into
// the engine so the backing store can change without touching call sites.
type Limiter interface {
	// Check returns nil when an attempt may proceed, or an error wrapping
	// ErrLocked while a lockout is active.
	Check(ctx context.Context, callerIP, username string) error
	// RecordFailure counts one failed attempt; reaching the threshold
	// within the window starts a lockout.
	RecordFailure(ctx context.Context, callerIP, username string) error
	// Reset clears all state for the pair, called on successful login.
	Reset(ctx context.Context, callerIP, username string) error
}

func pairKey(callerIP, username string) string {
	if callerIP == "" {
		callerIP = "unknown"
	}
	return callerIP + "|" + username
}
