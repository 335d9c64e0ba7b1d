// Package security implements webhook payload signing. Payloads carry an
// HMAC-SHA256 signature computed over the raw body with a shared secret.
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const sigPrefix = "sha256="

// Sign returns the signature header value for a payload.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return sigPrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether header is a valid signature for the payload.
// Comparison is constant-time.
func Verify(secret, body []byte, header string) bool {
	if !strings.HasPrefix(header, sigPrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, sigPrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
