package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"

	"github.com/affinity-network/exchange-service/config"
	"github.com/affinity-network/exchange-service/pkg/service/common"
)

const testRegistryURL = "http://registry.test/api/v1"

func testClient(t *testing.T) *Client {
	client, err := NewClient(config.RegistryServiceConfig{
		BaseServiceConfig: &config.BaseServiceConfig{Name: "registry"},
		URL:               testRegistryURL,
		APIKey:            "test-api-key",
	})
	require.NoError(t, err)
	gock.InterceptClient(client.http)
	t.Cleanup(gock.Off)
	return client
}

func TestPutDocument(t *testing.T) {
	client := testClient(t)

	gock.New(testRegistryURL).
		Post("/did/put-in-ipfs").
		Reply(200).
		JSON(map[string]any{"hash": "Qmabc123"})

	hash, err := client.PutDocument(context.Background(), map[string]any{"id": "did:elem:abcd"})
	assert.NoError(t, err)
	assert.Equal(t, "Qmabc123", hash)
	assert.True(t, gock.IsDone())
}

func TestAnchorDIDSendsAPIKey(t *testing.T) {
	client := testClient(t)

	gock.New(testRegistryURL).
		Post("/did/anchor-did").
		MatchHeader("Api-Key", "test-api-key").
		Reply(200).
		JSON(map[string]any{"did": "did:elem:abcd"})

	did, err := client.AnchorDID(context.Background(), AnchorDIDRequest{
		DID:                  "did:elem:abcd",
		DIDDocumentAddress:   "Qmabc123",
		EthereumPublicKeyHex: "deadbeef",
		TransactionSignature: map[string]any{"r": "1", "s": "2"},
	})
	assert.NoError(t, err)
	assert.Equal(t, "did:elem:abcd", did)
	assert.True(t, gock.IsDone())
}

func TestResolve(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		client := testClient(t)

		gock.New(testRegistryURL).
			Post("/did/resolve-did").
			Reply(200).
			JSON(map[string]any{"didDocument": map[string]any{
				"id": "did:elem:abcd",
				"publicKey": []map[string]any{{
					"id":              "did:elem:abcd#key-1",
					"type":            "Ed25519VerificationKey2018",
					"controller":      "did:elem:abcd",
					"publicKeyBase58": "3Mzt8Nf3vS1tLz5u4q1N4dZK1F9TDe8x1v2W3Y4Z5a6b",
				}},
			}})

		doc, err := client.Resolve(context.Background(), "did:elem:abcd")
		require.NoError(t, err)
		assert.Equal(t, "did:elem:abcd", doc.ID)
		require.Len(t, doc.PublicKey, 1)
		assert.Equal(t, "did:elem:abcd#key-1", doc.PublicKey[0].ID)
	})

	t.Run("unknown did is a typed failure", func(t *testing.T) {
		client := testClient(t)

		gock.New(testRegistryURL).
			Post("/did/resolve-did").
			Reply(404).
			JSON(map[string]any{"error": "did not found"})

		_, err := client.Resolve(context.Background(), "did:elem:missing")
		assert.Error(t, err)
		assert.True(t, common.IsCode(err, common.UnknownSigner))
	})

	t.Run("unreachable registry surfaces CapabilityUnavailable", func(t *testing.T) {
		client := testClient(t)

		// every attempt, including retries, gets a 500
		gock.New(testRegistryURL).
			Post("/did/resolve-did").
			Persist().
			Reply(500).
			JSON(map[string]any{"error": "boom"})

		_, err := client.Resolve(context.Background(), "did:elem:abcd")
		assert.Error(t, err)
		assert.True(t, common.IsCode(err, common.CapabilityUnavailable))
	})
}

func TestTransactionCount(t *testing.T) {
	client := testClient(t)

	gock.New(testRegistryURL).
		Post("/did/transaction-count").
		Reply(200).
		JSON(map[string]any{"transactionCount": 42})

	count, err := client.TransactionCount(context.Background(), "deadbeef")
	assert.NoError(t, err)
	assert.Equal(t, int64(42), count)
}
