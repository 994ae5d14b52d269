// Package storage provides the service's persistence abstraction, independent
// of DB providers.
package storage

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

type Type string

const (
	Bolt   Type = "bolt"
	Redis  Type = "redis"
	Memory Type = "memory"
)

type OptionKey string

const (
	BoltDBFilePathOption OptionKey = "boltdb-filepath-option"
	RedisAddressOption   OptionKey = "redis-address-option"
	PasswordOption       OptionKey = "password-option"
)

type Option struct {
	ID     OptionKey
	Option any
}

// ServiceStorage describes the api for storage independent of DB providers
type ServiceStorage interface {
	Type() Type
	URI() string
	IsOpen() bool
	Close() error

	Write(ctx context.Context, namespace, key string, value []byte) error
	Read(ctx context.Context, namespace, key string) ([]byte, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	ReadAll(ctx context.Context, namespace string) (map[string][]byte, error)
	// Update applies the updater to the value under namespace/key as a single atomic
	// step relative to other writers, and returns the updated value.
	Update(ctx context.Context, namespace, key string, updater Updater) ([]byte, error)
	Delete(ctx context.Context, namespace, key string) error
	DeleteNamespace(ctx context.Context, namespace string) error
}

// Updater encapsulates the read-modify-write logic for ServiceStorage.Update
type Updater interface {
	// Validate runs before the update and aborts it when it errors.
	Validate(v []byte) error
	Update(v []byte) ([]byte, error)
}

// NewStorage instantiates a ServiceStorage for the given provider type
func NewStorage(storageType Type, options ...Option) (ServiceStorage, error) {
	switch storageType {
	case Bolt:
		return newBoltDB(options)
	case Redis:
		return newRedisDB(options)
	case Memory:
		return newMemoryDB(), nil
	default:
		return nil, errors.Errorf("unsupported storage provider: %s", storageType)
	}
}

// MakeNamespace takes a set of possible namespace values and combines them as a convention
func MakeNamespace(ns ...string) string {
	return strings.Join(ns, "-")
}

func findOption(options []Option, id OptionKey) (string, bool) {
	for _, option := range options {
		if option.ID == id {
			s, ok := option.Option.(string)
			return s, ok
		}
	}
	return "", false
}
