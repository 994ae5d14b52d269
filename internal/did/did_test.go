package did

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affinity-network/exchange-service/internal/keyaccess"
)

func TestGetMethodForDID(t *testing.T) {
	tests := []struct {
		name     string
		did      string
		expected Method
		wantErr  bool
	}{
		{name: "elem did", did: "did:elem:abcd", expected: ElemMethod},
		{name: "jolo did", did: "did:jolo:abcd", expected: JoloMethod},
		{name: "too few parts", did: "did:elem", wantErr: true},
		{name: "wrong scheme", did: "id:elem:abcd", wantErr: true},
		{name: "empty method", did: "did::abcd", wantErr: true},
		{name: "empty id", did: "did:elem:", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			method, err := GetMethodForDID(test.did)
			if test.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.expected, method)
		})
	}
}

func TestIsValidDID(t *testing.T) {
	assert.NoError(t, IsValidDID("did:elem:abcd"))
	assert.NoError(t, IsValidDID("did:jolo:abcd"))
	assert.Error(t, IsValidDID("did:web:abcd"))
	assert.Error(t, IsValidDID("banana"))
}

func TestVerificationKeyLookup(t *testing.T) {
	doc := Document{
		ID: "did:elem:abcd",
		PublicKey: []PublicKey{
			{ID: "did:elem:abcd#key-1", Type: Ed25519KeyType},
			{ID: "did:elem:abcd#key-2", Type: Ed25519KeyType},
		},
	}

	key, err := doc.VerificationKey("")
	require.NoError(t, err)
	assert.Equal(t, "did:elem:abcd#key-1", key.ID)

	key, err = doc.VerificationKey("#key-2")
	require.NoError(t, err)
	assert.Equal(t, "did:elem:abcd#key-2", key.ID)

	_, err = doc.VerificationKey("#key-3")
	assert.Error(t, err)

	empty := Document{ID: "did:elem:empty"}
	_, err = empty.VerificationKey("")
	assert.Error(t, err)
}

type staticResolver struct {
	docs map[string]*Document
}

func (r staticResolver) Resolve(_ context.Context, did string) (*Document, error) {
	doc, ok := r.docs[did]
	if !ok {
		return nil, assert.AnError
	}
	return doc, nil
}

func TestVerifyTokenFromDID(t *testing.T) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	did := "did:elem:holder"
	kid := did + "#key-1"
	resolver := staticResolver{docs: map[string]*Document{
		did: {
			ID: did,
			PublicKey: []PublicKey{{
				ID:              kid,
				Type:            Ed25519KeyType,
				Controller:      did,
				PublicKeyBase58: base58.Encode(pubKey),
			}},
		},
	}}

	ka, err := keyaccess.NewJWKKeyAccess(did, kid, privKey)
	require.NoError(t, err)
	token, err := ka.Sign(map[string]any{"iss": did})
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, VerifyTokenFromDID(ctx, resolver, did, kid, *token))

	// unknown did
	err = VerifyTokenFromDID(ctx, resolver, "did:elem:unknown", kid, *token)
	assert.Error(t, err)

	// token signed by someone else
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherKA, err := keyaccess.NewJWKKeyAccess(did, kid, otherPriv)
	require.NoError(t, err)
	forged, err := otherKA.Sign(map[string]any{"iss": did})
	require.NoError(t, err)
	err = VerifyTokenFromDID(ctx, resolver, did, kid, *forged)
	assert.Error(t, err)
}
