// Package signature implements HMAC-SHA256 validation of inbound webhook payloads.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Prefix is prepended to the hex digest on the wire, matching the
// X-Hub-Signature-256 header format used by GitHub.
const Prefix = "sha256="

// Sign computes the expected signature for a raw request body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return Prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether received matches the signature computed over body.
// The comparison is constant-time. A mismatch is a plain false, never an
// error; callers treat false as a fatal rejection of the request.
func Verify(secret string, body []byte, received string) bool {
	expected := Sign(secret, body)

	return hmac.Equal([]byte(expected), []byte(received))
}
