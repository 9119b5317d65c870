// Package session stores the server-side half of the session model: one
// record per identity holding the currently valid signed token. Rotation
// overwrites the record, revocation deletes it, and authentication
// requires byte equality between the presented token and the record.
package session
