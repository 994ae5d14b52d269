package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/ardanlabs/conf"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultConfigPath = "config/config.toml"
	ConfigFileName    = "config.toml"
	ConfigExtension   = ".toml"
	ConfigPathEnvVar  = "EXCHANGE_SERVICE_CONFIG_PATH"

	DefaultServiceEndpoint = "http://localhost:8080"
	DefaultRegistryURL     = "http://localhost:8081/api/v1"
	DefaultProviderURL     = "http://localhost:8082/api/v1"
)

type ExchangeServiceConfig struct {
	conf.Version
	Server   ServerConfig   `toml:"server"`
	Services ServicesConfig `toml:"services"`
}

// ServerConfig represents configurable properties for the HTTP server
type ServerConfig struct {
	APIHost         string        `toml:"api_host" conf:"default:0.0.0.0:3000"`
	ReadTimeout     time.Duration `toml:"read_timeout" conf:"default:5s"`
	WriteTimeout    time.Duration `toml:"write_timeout" conf:"default:5s"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout" conf:"default:5s"`
	LogLocation     string        `toml:"log_location" conf:"default:log"`
	LogLevel        string        `toml:"log_level" conf:"default:debug"`
	EnableCORS      bool          `toml:"enable_cors" conf:"default:true"`
}

// ServicesConfig represents configurable properties for the components of the service
type ServicesConfig struct {
	// at present, it is assumed that a single storage provider works for all services
	StorageProvider string         `toml:"storage"`
	StorageOptions  StorageOptions `toml:"storage_option"`
	ServiceEndpoint string         `toml:"service_endpoint"`

	// Embed all service-specific configs here. The order matters: from which should be instantiated first, to last
	KeyStoreConfig KeyStoreServiceConfig `toml:"keystore,omitempty"`
	RegistryConfig RegistryServiceConfig `toml:"registry,omitempty"`
	ProviderConfig ProviderServiceConfig `toml:"provider,omitempty"`
	DIDConfig      DIDServiceConfig      `toml:"did,omitempty"`
	ExchangeConfig ExchangeConfig        `toml:"exchange,omitempty"`
	AuthConfig     AuthServiceConfig     `toml:"auth,omitempty"`
}

type StorageOptions struct {
	FilePath string `toml:"file_path"`
	Address  string `toml:"address"`
	Password string `toml:"password"`
}

// BaseServiceConfig represents configurable properties for a specific component of the service.
// Can be wrapped and extended for any specific service config.
type BaseServiceConfig struct {
	Name            string `toml:"name"`
	ServiceEndpoint string `toml:"service_endpoint"`
}

type KeyStoreServiceConfig struct {
	*BaseServiceConfig
	// Service key password. Used by a KDF whose key is used by a symmetric cypher for key encryption.
	// The password is salted before usage.
	ServiceKeyPassword string `toml:"password"`
}

func (k *KeyStoreServiceConfig) IsEmpty() bool {
	if k == nil {
		return true
	}
	return reflect.DeepEqual(k, &KeyStoreServiceConfig{})
}

// RegistryServiceConfig holds connection properties for the DID registry, the external
// system that stores DID documents in content-addressed storage and anchors them on chain.
type RegistryServiceConfig struct {
	*BaseServiceConfig
	URL            string        `toml:"url"`
	APIKey         string        `toml:"api_key"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

func (r *RegistryServiceConfig) IsEmpty() bool {
	if r == nil {
		return true
	}
	return reflect.DeepEqual(r, &RegistryServiceConfig{})
}

// ProviderServiceConfig holds connection properties for the managed identity
// provider that owns accounts and confirmation-code delivery.
type ProviderServiceConfig struct {
	*BaseServiceConfig
	URL            string        `toml:"url"`
	APIKey         string        `toml:"api_key"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

func (p *ProviderServiceConfig) IsEmpty() bool {
	if p == nil {
		return true
	}
	return reflect.DeepEqual(p, &ProviderServiceConfig{})
}

type DIDServiceConfig struct {
	*BaseServiceConfig
	Methods []string `toml:"methods"`
}

func (d *DIDServiceConfig) IsEmpty() bool {
	if d == nil {
		return true
	}
	return reflect.DeepEqual(d, &DIDServiceConfig{})
}

// ExchangeConfig represents configurable properties for the credential exchange service
type ExchangeConfig struct {
	*BaseServiceConfig
	// How long a minted offer, share, or challenge token may be answered before it is stale.
	RequestTTL time.Duration `toml:"request_ttl"`
}

func (e *ExchangeConfig) IsEmpty() bool {
	if e == nil {
		return true
	}
	return reflect.DeepEqual(e, &ExchangeConfig{})
}

// AuthServiceConfig represents configurable properties for the OTP authentication service
type AuthServiceConfig struct {
	*BaseServiceConfig
	// How many wrong confirmation codes a single session tolerates before it is destroyed.
	CodeAttemptLimit int `toml:"code_attempt_limit"`
	// How long a session stays completable after initiation.
	SessionTTL time.Duration `toml:"session_ttl"`
}

func (a *AuthServiceConfig) IsEmpty() bool {
	if a == nil {
		return true
	}
	return reflect.DeepEqual(a, &AuthServiceConfig{})
}

// LoadConfig attempts to load a TOML config file from the given path, and coerce it into our object model.
// Before loading, defaults are applied on certain properties, which are overwritten if specified in the TOML file.
func LoadConfig(path string) (*ExchangeServiceConfig, error) {
	// no path, load default config
	defaultConfig := false
	if path == "" {
		logrus.Info("no config path provided, loading default config...")
		defaultConfig = true
	} else if filepath.Ext(path) != ConfigExtension {
		return nil, fmt.Errorf("path<%s> did not match the expected TOML format", path)
	}

	// create the config object
	var config ExchangeServiceConfig

	// parse and apply defaults
	if err := conf.Parse(os.Args[1:], ServiceName, &config); err != nil {
		switch {
		case errors.Is(err, conf.ErrHelpWanted):
			usage, err := conf.Usage(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "parsing config")
			}
			fmt.Println(usage)

			return nil, nil

		case errors.Is(err, conf.ErrVersionWanted):
			version, err := conf.VersionString(ServiceName, &config)
			if err != nil {
				return nil, errors.Wrap(err, "generating config version")
			}

			fmt.Println(version)
			return nil, nil
		}

		return nil, errors.Wrap(err, "parsing config")
	}

	if defaultConfig {
		config.Services = defaultServicesConfig()
	} else {
		// load from TOML file
		if _, err := toml.DecodeFile(path, &config); err != nil {
			return nil, errors.Wrapf(err, "could not load config: %s", path)
		}

		// apply defaults if not included in toml file
		applyServiceDefaults(&config.Services)
	}

	return &config, nil
}

func defaultServicesConfig() ServicesConfig {
	cfg := ServicesConfig{
		StorageProvider: "bolt",
		ServiceEndpoint: DefaultServiceEndpoint,
		KeyStoreConfig: KeyStoreServiceConfig{
			BaseServiceConfig:  &BaseServiceConfig{Name: "keystore"},
			ServiceKeyPassword: "default-password",
		},
		RegistryConfig: RegistryServiceConfig{
			BaseServiceConfig: &BaseServiceConfig{Name: "registry"},
			URL:               DefaultRegistryURL,
		},
		ProviderConfig: ProviderServiceConfig{
			BaseServiceConfig: &BaseServiceConfig{Name: "provider"},
			URL:               DefaultProviderURL,
		},
		DIDConfig: DIDServiceConfig{
			BaseServiceConfig: &BaseServiceConfig{Name: "did"},
			Methods:           []string{"elem", "jolo"},
		},
		ExchangeConfig: ExchangeConfig{
			BaseServiceConfig: &BaseServiceConfig{Name: "exchange", ServiceEndpoint: DefaultServiceEndpoint},
		},
		AuthConfig: AuthServiceConfig{
			BaseServiceConfig: &BaseServiceConfig{Name: "auth"},
		},
	}
	applyServiceDefaults(&cfg)
	return cfg
}

func applyServiceDefaults(services *ServicesConfig) {
	if services.ExchangeConfig.BaseServiceConfig != nil && services.ExchangeConfig.ServiceEndpoint == "" {
		services.ExchangeConfig.ServiceEndpoint = services.ServiceEndpoint
	}
	if services.ExchangeConfig.RequestTTL == 0 {
		services.ExchangeConfig.RequestTTL = 10 * time.Minute
	}
	if services.AuthConfig.CodeAttemptLimit == 0 {
		services.AuthConfig.CodeAttemptLimit = 3
	}
	if services.AuthConfig.SessionTTL == 0 {
		services.AuthConfig.SessionTTL = 10 * time.Minute
	}
	if services.RegistryConfig.RequestTimeout == 0 {
		services.RegistryConfig.RequestTimeout = 10 * time.Second
	}
	if services.ProviderConfig.RequestTimeout == 0 {
		services.ProviderConfig.RequestTimeout = 10 * time.Second
	}
}
