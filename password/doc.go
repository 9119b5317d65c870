// Package password implements salted, iterated credential derivation
// (PBKDF2-SHA256) with constant-time verification and a fixed-cost path
// for unknown identities.
package password
