package tokens

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ParseToken strips the expected prefix from a raw bearer token and returns
// the secret part. ok is false when the prefix does not match.
func ParseToken(raw, prefix string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	secret := strings.TrimPrefix(raw, prefix)
	if secret == "" {
		return "", false
	}
	return secret, true
}

// HMAC256Hex computes the hex HMAC-SHA256 lookup digest of secret under the
// server pepper. Stored per actor so tokens are never persisted in clear.
func HMAC256Hex(pepper, secret string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}
