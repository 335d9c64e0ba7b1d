package security_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"matrixci/internal/security"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("s3cret")
	body := []byte(`{"branch":"master"}`)

	sig := security.Sign(secret, body)
	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.True(t, security.Verify(secret, body, sig))
}

func TestVerifyRejects(t *testing.T) {
	t.Parallel()

	secret := []byte("s3cret")
	body := []byte(`{"branch":"master"}`)
	sig := security.Sign(secret, body)

	assert.False(t, security.Verify(secret, []byte(`{"branch":"main"}`), sig), "tampered body")
	assert.False(t, security.Verify([]byte("other"), body, sig), "wrong secret")
	assert.False(t, security.Verify(secret, body, strings.TrimPrefix(sig, "sha256=")), "missing prefix")
	assert.False(t, security.Verify(secret, body, "sha256=zz"), "bad hex")
	assert.False(t, security.Verify(secret, body, ""), "empty header")
}
