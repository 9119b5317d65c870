// Package middleware adapts the engine to net/http: cookie-based
// session authentication with rotation on every request, admin gating,
// and CSRF validation for state-changing methods.
package middleware
