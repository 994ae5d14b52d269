package provider

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/h2non/gock.v1"

	"github.com/affinity-network/exchange-service/pkg/service/common"
)

const testProviderURL = "http://provider.test/api/v1"

func testClient(t *testing.T) *Client {
	client := &Client{http: &http.Client{}, url: testProviderURL, apiKey: "test-api-key"}
	gock.InterceptClient(client.http)
	t.Cleanup(gock.Off)
	return client
}

func TestAccountExists(t *testing.T) {
	client := testClient(t)
	gock.New(testProviderURL).
		Post("/account/exists").
		MatchHeader("Api-Key", "test-api-key").
		JSON(map[string]string{"identifier": "alice@example.com"}).
		Reply(http.StatusOK).
		JSON(map[string]bool{"exists": true})

	exists, err := client.AccountExists(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, gock.IsDone())
}

func TestVerifyCode(t *testing.T) {
	client := testClient(t)
	gock.New(testProviderURL).
		Post("/code/verify").
		Reply(http.StatusOK).
		JSON(map[string]bool{"valid": false})

	valid, err := client.VerifyCode(context.Background(), "alice@example.com", "000000")
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestUnreachableProviderIsCapabilityUnavailable(t *testing.T) {
	client := testClient(t)
	gock.New(testProviderURL).
		Post("/code/send").
		Persist().
		Reply(http.StatusInternalServerError)

	err := client.SendCode(context.Background(), "alice@example.com", nil)
	require.Error(t, err)
	assert.True(t, common.IsCode(err, common.CapabilityUnavailable))
}

func TestClientErrorIsNotRetried(t *testing.T) {
	client := testClient(t)
	gock.New(testProviderURL).
		Post("/account/register").
		Reply(http.StatusBadRequest)

	err := client.Register(context.Background(), "alice@example.com", "")
	require.Error(t, err)
	assert.False(t, common.IsCode(err, common.CapabilityUnavailable))
	assert.True(t, gock.IsDone())
}
