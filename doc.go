// Package tanlink is the trust and allocation core of a Redis-backed
// link shortener: credential verification with PBKDF2, a single live
// session per identity enforced by store lookup, per-identity
// anti-forgery tokens, failed-login lockout, and conditional short-key
// allocation.
//
// The Engine never touches HTTP. The middleware package adapts it to
// net/http handlers, and cmd/tanlinkd wires the full service.
package tanlink
