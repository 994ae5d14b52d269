package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affinity-network/exchange-service/config"
	"github.com/affinity-network/exchange-service/pkg/testutil"
)

func TestKeyStoreService(t *testing.T) {
	for _, test := range testutil.TestDatabases {
		t.Run(test.Name, func(t *testing.T) {
			db := test.ServiceStorage(t)
			service, err := NewKeyStoreService(config.KeyStoreServiceConfig{
				BaseServiceConfig:  &config.BaseServiceConfig{Name: "keystore"},
				ServiceKeyPassword: "test-password",
			}, db)
			require.NoError(t, err)
			ctx := context.Background()

			t.Run("generate, get, sign", func(t *testing.T) {
				keyID := "did:elem:issuer#primary"
				resp, err := service.GenerateKey(ctx, GenerateKeyRequest{ID: keyID, Controller: "did:elem:issuer"})
				require.NoError(t, err)
				assert.Len(t, resp.PublicKey, ed25519.PublicKeySize)

				gotKey, err := service.GetKey(ctx, GetKeyRequest{ID: keyID})
				require.NoError(t, err)
				assert.Equal(t, "did:elem:issuer", gotKey.Controller)
				assert.False(t, gotKey.Revoked)

				token, err := service.Sign(ctx, keyID, map[string]any{"iss": "did:elem:issuer"})
				require.NoError(t, err)
				assert.NotEmpty(t, token)

				ka, err := service.GetKeyAccess(ctx, keyID)
				require.NoError(t, err)
				assert.NoError(t, ka.Verify(*token))
			})

			t.Run("store externally generated key", func(t *testing.T) {
				_, privKey, err := ed25519.GenerateKey(rand.Reader)
				require.NoError(t, err)

				keyID := "did:jolo:holder#primary"
				err = service.StoreKey(ctx, StoreKeyRequest{ID: keyID, Controller: "did:jolo:holder", PrivateKey: privKey})
				require.NoError(t, err)

				gotKey, err := service.GetKey(ctx, GetKeyRequest{ID: keyID})
				require.NoError(t, err)
				assert.Equal(t, privKey, gotKey.Key)
			})

			t.Run("revoked key cannot sign", func(t *testing.T) {
				keyID := "did:elem:revoked#primary"
				_, err := service.GenerateKey(ctx, GenerateKeyRequest{ID: keyID, Controller: "did:elem:revoked"})
				require.NoError(t, err)

				err = service.RevokeKey(ctx, RevokeKeyRequest{ID: keyID})
				require.NoError(t, err)

				_, err = service.Sign(ctx, keyID, map[string]any{"iss": "did:elem:revoked"})
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "revoked")
			})

			t.Run("missing key", func(t *testing.T) {
				_, err := service.GetKey(ctx, GetKeyRequest{ID: "nope"})
				assert.Error(t, err)
			})
		})
	}
}

func TestEmptyPasswordRejected(t *testing.T) {
	db := testutil.TestDatabases[0].ServiceStorage(t)
	_, err := NewKeyStoreService(config.KeyStoreServiceConfig{
		BaseServiceConfig: &config.BaseServiceConfig{Name: "keystore"},
	}, db)
	assert.Error(t, err)
}
