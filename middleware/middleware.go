package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tanlink/tanlink"
)

type contextKey int

const identityKey contextKey = iota

// Identity returns the authenticated identity set by Guard, or "".
func Identity(ctx context.Context) string {
	identity, _ := ctx.Value(identityKey).(string)
	return identity
}

// Options controls Guard behavior.
type Options struct {
	// RequireAdmin rejects authenticated non-privileged identities with 403.
	RequireAdmin bool
	// ValidateCSRF checks the "csrf" form field on state-changing methods
	// before the handler runs.
	ValidateCSRF bool
	// LoginPath is where unauthenticated callers are redirected.
	// Defaults to "/login".
	LoginPath string
	// Logger records rotation and validation failures. Defaults to no-op.
	Logger *zap.Logger
}

// Guard wraps a handler with session authentication. Every request that
// reaches the inner handler carries a verified identity in its context
// and a freshly rotated session cookie; the token that arrived is dead
// by the time the handler runs.
func Guard(engine *tanlink.Engine, opts Options) func(http.Handler) http.Handler {
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := tanlink.WithClientIP(r.Context(), ClientIP(r))

			presented := ""
			if cookie, err := r.Cookie(engine.CookieName()); err == nil {
				presented = cookie.Value
			}

			identity, err := engine.Authenticate(ctx, presented)
			if err != nil {
				if tanlink.IsAuthenticationFailure(err) {
					ClearSessionCookie(w, engine)
					http.Redirect(w, r, loginPath, http.StatusFound)
					return
				}
				logger.Error("authenticating request", zap.Error(err))
				http.Error(w, "service unavailable", http.StatusInternalServerError)
				return
			}

			if opts.RequireAdmin {
				if err := engine.AuthorizeAdmin(identity); err != nil {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}

			if opts.ValidateCSRF && stateChanging(r.Method) {
				if err := engine.ValidateCSRF(ctx, identity, r.FormValue("csrf")); err != nil {
					if tanlink.IsBackendFailure(err) {
						logger.Error("validating csrf token", zap.Error(err))
						http.Error(w, "service unavailable", http.StatusInternalServerError)
						return
					}
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}

			rotated, err := engine.Rotate(ctx, identity)
			if err != nil {
				logger.Error("rotating session", zap.Error(err))
				http.Error(w, "service unavailable", http.StatusInternalServerError)
				return
			}
			SetSessionCookie(w, engine, rotated)

			ctx = context.WithValue(ctx, identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// SetSessionCookie writes the session token cookie with the engine's
// configured name and lifetime.
func SetSessionCookie(w http.ResponseWriter, engine *tanlink.Engine, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     engine.CookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(engine.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session token cookie.
func ClearSessionCookie(w http.ResponseWriter, engine *tanlink.Engine) {
	http.SetCookie(w, &http.Cookie{
		Name:     engine.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClientIP extracts the caller's address: the first X-Forwarded-For
// entry when present, otherwise the connection's remote host.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
	return host
}
