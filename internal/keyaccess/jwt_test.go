package keyaccess

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyAccess(t *testing.T) *JWKKeyAccess {
	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	ka, err := NewJWKKeyAccess("did:elem:test", "did:elem:test#key-1", privKey)
	require.NoError(t, err)
	return ka
}

func TestCreateJWKKeyAccess(t *testing.T) {
	t.Run("requires all arguments", func(t *testing.T) {
		_, privKey, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)

		_, err = NewJWKKeyAccess("", "kid", privKey)
		assert.Error(t, err)

		_, err = NewJWKKeyAccess("id", "", privKey)
		assert.Error(t, err)

		_, err = NewJWKKeyAccess("id", "kid", nil)
		assert.Error(t, err)
	})

	t.Run("happy path", func(t *testing.T) {
		ka := testKeyAccess(t)
		assert.Equal(t, "did:elem:test", ka.ID())
		assert.Equal(t, "did:elem:test#key-1", ka.KID())
	})
}

func TestSignVerifyRoundTrip(t *testing.T) {
	ka := testKeyAccess(t)

	token, err := ka.Sign(map[string]any{"iss": "did:elem:test", "jti": "nonce-1", "hello": "world"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	err = ka.Verify(*token)
	assert.NoError(t, err)

	parsed, err := ka.ParseVerified(*token)
	require.NoError(t, err)
	assert.Equal(t, "did:elem:test", parsed.Issuer())
	assert.Equal(t, "nonce-1", parsed.JwtID())
	hello, ok := parsed.Get("hello")
	assert.True(t, ok)
	assert.Equal(t, "world", hello)
}

func TestVerifyWithWrongKeyFails(t *testing.T) {
	ka := testKeyAccess(t)
	other := testKeyAccess(t)

	token, err := ka.Sign(map[string]any{"iss": "did:elem:test"})
	require.NoError(t, err)

	err = other.Verify(*token)
	assert.Error(t, err)
}

func TestVerifierOnlyAccessCannotSign(t *testing.T) {
	pubKey, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	ka, err := NewJWKKeyAccessVerifier("did:elem:test", "did:elem:test#key-1", pubKey)
	require.NoError(t, err)

	_, err = ka.Sign(map[string]any{"iss": "did:elem:test"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "nil signer")
}

func TestParseUnverified(t *testing.T) {
	ka := testKeyAccess(t)
	token, err := ka.Sign(map[string]any{"iss": "did:elem:untrusted"})
	require.NoError(t, err)

	parsed, err := ParseUnverified(*token)
	require.NoError(t, err)
	assert.Equal(t, "did:elem:untrusted", parsed.Issuer())

	_, err = ParseUnverified("not-a-jwt")
	assert.Error(t, err)
}
