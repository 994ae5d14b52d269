// Package service wires the individual services together in dependency order
// over a shared storage provider.
package service

import (
	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/config"
	"github.com/affinity-network/exchange-service/internal/util"
	"github.com/affinity-network/exchange-service/pkg/provider"
	"github.com/affinity-network/exchange-service/pkg/registry"
	"github.com/affinity-network/exchange-service/pkg/service/auth"
	"github.com/affinity-network/exchange-service/pkg/service/did"
	"github.com/affinity-network/exchange-service/pkg/service/exchange"
	"github.com/affinity-network/exchange-service/pkg/service/framework"
	"github.com/affinity-network/exchange-service/pkg/service/keystore"
	"github.com/affinity-network/exchange-service/pkg/storage"
)

// ExchangeService is the umbrella for all service instances
type ExchangeService struct {
	KeyStore *keystore.Service
	DID      *did.Service
	Exchange *exchange.Service
	Auth     *auth.Service

	services []framework.Service
}

// GetServices returns the instantiated service providers
func (es *ExchangeService) GetServices() []framework.Service {
	return es.services
}

// InstantiateExchangeService creates the storage provider and brings up each
// service in dependency order: keystore, did, exchange, auth.
func InstantiateExchangeService(cfg config.ServicesConfig) (*ExchangeService, error) {
	if err := validateServiceConfig(cfg); err != nil {
		return nil, util.LoggingErrorMsg(err, "validating service config")
	}

	db, err := storage.NewStorage(storage.Type(cfg.StorageProvider), storageOptions(cfg)...)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "instantiating storage provider: %s", cfg.StorageProvider)
	}

	keyStoreService, err := keystore.NewKeyStoreService(cfg.KeyStoreConfig, db)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating the keystore service")
	}
	registryClient, err := registry.NewClient(cfg.RegistryConfig)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating the registry client")
	}
	didService, err := did.NewDIDService(cfg.DIDConfig, db, keyStoreService, registryClient)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating the did service")
	}
	exchangeService, err := exchange.NewExchangeService(cfg.ExchangeConfig, db, keyStoreService, didService)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating the exchange service")
	}
	providerClient, err := provider.NewClient(cfg.ProviderConfig)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating the identity provider client")
	}
	authService, err := auth.NewAuthService(cfg.AuthConfig, db, providerClient, didService, nil)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating the auth service")
	}

	return &ExchangeService{
		KeyStore: keyStoreService,
		DID:      didService,
		Exchange: exchangeService,
		Auth:     authService,
		services: []framework.Service{keyStoreService, didService, exchangeService, authService},
	}, nil
}

func validateServiceConfig(cfg config.ServicesConfig) error {
	if cfg.StorageProvider == "" {
		return errors.New("a storage provider must be configured")
	}
	if cfg.KeyStoreConfig.IsEmpty() {
		return errors.New("keystore config is missing")
	}
	if cfg.RegistryConfig.IsEmpty() {
		return errors.New("registry config is missing")
	}
	if cfg.ProviderConfig.IsEmpty() {
		return errors.New("provider config is missing")
	}
	if cfg.DIDConfig.IsEmpty() {
		return errors.New("did config is missing")
	}
	if cfg.ExchangeConfig.IsEmpty() {
		return errors.New("exchange config is missing")
	}
	if cfg.AuthConfig.IsEmpty() {
		return errors.New("auth config is missing")
	}
	return nil
}

func storageOptions(cfg config.ServicesConfig) []storage.Option {
	var options []storage.Option
	if cfg.StorageOptions.FilePath != "" {
		options = append(options, storage.Option{ID: storage.BoltDBFilePathOption, Option: cfg.StorageOptions.FilePath})
	}
	if cfg.StorageOptions.Address != "" {
		options = append(options, storage.Option{ID: storage.RedisAddressOption, Option: cfg.StorageOptions.Address})
		options = append(options, storage.Option{ID: storage.PasswordOption, Option: cfg.StorageOptions.Password})
	}
	return options
}
