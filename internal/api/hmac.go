package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// verifySignature checks an HMAC-SHA256 hex signature over the raw request
// body bytes. The body must be the exact bytes received on the wire, captured
// before any JSON parsing; re-serialization could alter byte-for-byte
// equality and break verification.
//
// Comparison is constant-time (crypto/subtle). Decoding the supplied hex
// before comparing makes the check case-insensitive. Returns a boolean and
// never an error so callers cannot branch on failure detail.
func verifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	supplied, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare(expected, supplied) == 1
}

// computeSignature renders the expected lowercase hex signature for a body.
// Used by tests to sign fixtures.
func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
