package keystore

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/affinity-network/exchange-service/internal/encryption"
	"github.com/affinity-network/exchange-service/pkg/storage"
)

const (
	namespace     = "keystore"
	saltNamespace = "keystore-config"
	saltKey       = "service-key-salt"
	saltSize      = 16
)

// Storage persists keys with their private bytes encrypted under the service key
type Storage struct {
	db        storage.ServiceStorage
	encrypter encryption.Encrypter
	decrypter encryption.Decrypter
}

func NewKeyStoreStorage(ctx context.Context, db storage.ServiceStorage, password string) (*Storage, error) {
	if password == "" {
		return nil, errors.New("service key password cannot be empty")
	}
	salt, err := loadOrCreateSalt(ctx, db)
	if err != nil {
		return nil, errors.Wrap(err, "loading service key salt")
	}
	serviceKey := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	encrypter, err := encryption.NewXChaCha20Poly1305EncrypterWithKey(serviceKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating encrypter")
	}
	return &Storage{db: db, encrypter: encrypter, decrypter: encrypter}, nil
}

func loadOrCreateSalt(ctx context.Context, db storage.ServiceStorage) ([]byte, error) {
	salt, err := db.Read(ctx, saltNamespace, saltKey)
	if err != nil {
		return nil, err
	}
	if salt != nil {
		return salt, nil
	}
	if salt, err = encryption.GenerateSalt(saltSize); err != nil {
		return nil, err
	}
	if err = db.Write(ctx, saltNamespace, saltKey, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

func (s *Storage) StoreKey(ctx context.Context, key StoredKey, privateKey []byte) error {
	encryptedKey, err := s.encrypter.Encrypt(ctx, privateKey)
	if err != nil {
		return errors.Wrapf(err, "encrypting key<%s>", key.ID)
	}
	key.Base58Key = base58.Encode(encryptedKey)

	keyBytes, err := json.Marshal(key)
	if err != nil {
		return errors.Wrapf(err, "marshalling key<%s>", key.ID)
	}
	return s.db.Write(ctx, namespace, key.ID, keyBytes)
}

func (s *Storage) GetKey(ctx context.Context, id string) (*StoredKey, []byte, error) {
	stored, err := s.db.Read(ctx, namespace, id)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading key<%s>", id)
	}
	if stored == nil {
		return nil, nil, nil
	}
	var key StoredKey
	if err = json.Unmarshal(stored, &key); err != nil {
		return nil, nil, errors.Wrapf(err, "unmarshalling key<%s>", id)
	}

	encryptedKey, err := base58.Decode(key.Base58Key)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decoding key<%s>", id)
	}
	privateKey, err := s.decrypter.Decrypt(ctx, encryptedKey)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "decrypting key<%s>", id)
	}
	return &key, privateKey, nil
}

func (s *Storage) RevokeKey(ctx context.Context, id, revokedAt string) error {
	stored, err := s.db.Read(ctx, namespace, id)
	if err != nil {
		return errors.Wrapf(err, "reading key<%s>", id)
	}
	if stored == nil {
		return errors.Errorf("key<%s> not found", id)
	}
	var key StoredKey
	if err = json.Unmarshal(stored, &key); err != nil {
		return errors.Wrapf(err, "unmarshalling key<%s>", id)
	}
	key.Revoked = true
	key.RevokedAt = revokedAt
	keyBytes, err := json.Marshal(key)
	if err != nil {
		return errors.Wrapf(err, "marshalling key<%s>", id)
	}
	return s.db.Write(ctx, namespace, id, keyBytes)
}
