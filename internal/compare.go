package internal

import (
	"crypto/sha256"
	"crypto/subtle"
)

// CTEqual reports whether a and b are equal without leaking where they
// diverge. Both inputs are folded through SHA-256 first so the comparison
// cost is independent of content and of length; this is the one equality
// primitive shared by credential verification and CSRF validation.
func CTEqual(a, b []byte) bool {
	ha := sha256.Sum256(a)
	hb := sha256.Sum256(b)
	return subtle.ConstantTimeCompare(ha[:], hb[:]) == 1
}

// CTEqualString is CTEqual over strings.
func CTEqualString(a, b string) bool {
	return CTEqual([]byte(a), []byte(b))
}
