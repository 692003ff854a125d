package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256 produces keyed, deterministic fingerprints of secrets so that
// codes and credentials can be matched or audited without being stored.
type HMACSHA256 struct {
	secret []byte
}

// NewHMACSHA256 creates a new fingerprinter with a secret.
func NewHMACSHA256(secret []byte) *HMACSHA256 {
	return &HMACSHA256{secret: secret}
}

// Fingerprint returns the hex-encoded HMAC-SHA256 of the given parts joined by ':'.
func (h *HMACSHA256) Fingerprint(parts ...string) string {
	m := hmac.New(sha256.New, h.secret)
	for i, p := range parts {
		if i > 0 {
			m.Write([]byte{':'})
		}
		m.Write([]byte(p))
	}
	return hex.EncodeToString(m.Sum(nil))
}
