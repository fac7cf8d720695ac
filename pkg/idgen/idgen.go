// Package idgen provides ID generation utilities used across the engine.
package idgen

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/rs/xid"
)

// NewID generates a globally unique, time-sortable identifier (xid format,
// 20 characters, URL-safe).
func NewID() string {
	return xid.New().String()
}

// NewShortID returns an 8-character lowercase short id (the last 8
// characters of an xid, which carry its per-process counter) suitable for
// the "grasp/patch-<shortId>" topic-branch naming fallback: short enough to
// keep branch names readable, still collision-resistant within one repo.
func NewShortID() string {
	id := xid.New().String()
	return id[len(id)-8:]
}

// NewSecureSecret generates a cryptographically secure, URL-safe random
// string of the given length. Used for webhook HMAC/JWT secrets.
func NewSecureSecret(length int) string {
	byteLength := (length*3 + 3) / 4
	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		return "please-generate-a-secure-random-secret"
	}
	encoded := base64.URLEncoding.EncodeToString(bytes)
	if len(encoded) > length {
		encoded = encoded[:length]
	}
	return encoded
}
