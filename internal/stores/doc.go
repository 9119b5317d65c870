// Package stores holds the Redis record stores for CSRF tokens and user
// credentials. Every record carries a schema tag that is validated on
// read; a malformed stored value is a backend failure, never a crash.
package stores
