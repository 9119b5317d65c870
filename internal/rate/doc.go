// Package rate tracks failed login attempts per (caller, username) pair
// and enforces temporary lockouts. The Limiter interface is injected into
// the engine; the in-memory implementation is per-instance, the Redis
// implementation coordinates across instances.
package rate
