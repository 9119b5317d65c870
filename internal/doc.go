// Package internal holds crypto helpers shared by the tanlink core:
// uniform random key/token generation and the single constant-time
// equality primitive used by credential and CSRF verification.
package internal
