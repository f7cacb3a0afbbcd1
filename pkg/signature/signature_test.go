package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSign_Format(t *testing.T) {
	sig := Sign("secret", []byte(`{"ref":"refs/heads/main"}`))

	assert.True(t, strings.HasPrefix(sig, "sha256="))
	assert.Len(t, sig, len("sha256=")+64)
}

func TestVerify_RoundTrip(t *testing.T) {
	body := []byte(`{"repository":{"full_name":"a/b"},"ref":"refs/heads/main"}`)
	sig := Sign("hook-secret", body)

	assert.True(t, Verify("hook-secret", body, sig))
}

func TestVerify_MutatedBody(t *testing.T) {
	body := []byte(`{"repository":{"full_name":"a/b"}}`)
	sig := Sign("hook-secret", body)

	for i := range body {
		mutated := make([]byte, len(body))
		copy(mutated, body)
		mutated[i] ^= 0x01

		assert.False(t, Verify("hook-secret", mutated, sig), "mutation at byte %d must invalidate", i)
	}
}

func TestVerify_MutatedSignature(t *testing.T) {
	body := []byte("payload")
	sig := Sign("hook-secret", body)

	require.NotEmpty(t, sig)

	for i := range sig {
		mutated := []byte(sig)
		if mutated[i] == 'a' {
			mutated[i] = 'b'
		} else {
			mutated[i] = 'a'
		}

		assert.False(t, Verify("hook-secret", body, string(mutated)))
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	body := []byte("payload")
	sig := Sign("hook-secret", body)

	assert.False(t, Verify("other-secret", body, sig))
}

func TestVerify_MissingPrefix(t *testing.T) {
	body := []byte("payload")
	sig := strings.TrimPrefix(Sign("hook-secret", body), "sha256=")

	assert.False(t, Verify("hook-secret", body, sig))
}
