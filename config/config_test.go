package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config, err := LoadConfig("")
	assert.NoError(t, err)
	assert.NotEmpty(t, config)

	assert.False(t, config.Server.ReadTimeout.String() == "")
	assert.False(t, config.Server.WriteTimeout.String() == "")
	assert.False(t, config.Server.ShutdownTimeout.String() == "")
	assert.False(t, config.Server.APIHost == "")

	assert.NotEmpty(t, config.Services.StorageProvider)
	assert.Equal(t, 3, config.Services.AuthConfig.CodeAttemptLimit)
	assert.NotZero(t, config.Services.AuthConfig.SessionTTL)
	assert.NotZero(t, config.Services.ExchangeConfig.RequestTTL)
	assert.Contains(t, config.Services.DIDConfig.Methods, "elem")
	assert.NotEmpty(t, config.Services.RegistryConfig.URL)
	assert.NotEmpty(t, config.Services.ProviderConfig.URL)
	assert.NotZero(t, config.Services.ProviderConfig.RequestTimeout)
}
