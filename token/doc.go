// Package token mints and verifies the signed, time-bounded session
// tokens carried in the tanlink session cookie. A verified token proves
// the server minted it; it does not prove the session is still live.
package token
