package keystore

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/affinity-network/exchange-service/config"
	"github.com/affinity-network/exchange-service/internal/keyaccess"
	"github.com/affinity-network/exchange-service/internal/util"
	"github.com/affinity-network/exchange-service/pkg/service/framework"
	"github.com/affinity-network/exchange-service/pkg/storage"
)

// Service stores ed25519 signing keys encrypted at rest and signs on behalf of
// their controllers. Raw private key bytes never leave this package.
type Service struct {
	storage *Storage
	config  config.KeyStoreServiceConfig
}

func (s *Service) Type() framework.Type {
	return framework.KeyStore
}

func (s *Service) Status() framework.Status {
	if s.storage == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "keystore service is not ready: no storage configured",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s *Service) Config() config.KeyStoreServiceConfig {
	return s.config
}

func NewKeyStoreService(cfg config.KeyStoreServiceConfig, db storage.ServiceStorage) (*Service, error) {
	keyStoreStorage, err := NewKeyStoreStorage(context.Background(), db, cfg.ServiceKeyPassword)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating storage for the keystore service")
	}
	service := Service{storage: keyStoreStorage, config: cfg}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// GenerateKey creates a new ed25519 key pair, stores the private key, and returns the public key
func (s *Service) GenerateKey(ctx context.Context, request GenerateKeyRequest) (*GenerateKeyResponse, error) {
	logrus.Debugf("generating key: %+v", request)

	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "generating key pair")
	}
	if err = s.StoreKey(ctx, StoreKeyRequest{ID: request.ID, Controller: request.Controller, PrivateKey: privKey}); err != nil {
		return nil, err
	}
	return &GenerateKeyResponse{ID: request.ID, PublicKey: pubKey}, nil
}

func (s *Service) StoreKey(ctx context.Context, request StoreKeyRequest) error {
	logrus.Debugf("storing key: %s", request.ID)

	if request.ID == "" {
		return util.LoggingNewError("key id cannot be empty")
	}
	if len(request.PrivateKey) != ed25519.PrivateKeySize {
		return util.LoggingNewErrorf("unsupported key length for key: %s", request.ID)
	}
	key := StoredKey{
		ID:         request.ID,
		Controller: request.Controller,
		CreatedAt:  time.Now().Format(time.RFC3339),
	}
	if err := s.storage.StoreKey(ctx, key, request.PrivateKey); err != nil {
		return util.LoggingErrorMsgf(err, "storing key: %s", request.ID)
	}
	return nil
}

func (s *Service) GetKey(ctx context.Context, request GetKeyRequest) (*GetKeyResponse, error) {
	logrus.Debugf("getting key: %+v", request)

	gotKey, privateKey, err := s.storage.GetKey(ctx, request.ID)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "getting key with id: %s", request.ID)
	}
	if gotKey == nil {
		return nil, util.LoggingNewErrorf("key with id<%s> could not be found", request.ID)
	}
	return &GetKeyResponse{
		ID:         gotKey.ID,
		Controller: gotKey.Controller,
		Key:        privateKey,
		CreatedAt:  gotKey.CreatedAt,
		Revoked:    gotKey.Revoked,
		RevokedAt:  gotKey.RevokedAt,
	}, nil
}

func (s *Service) RevokeKey(ctx context.Context, request RevokeKeyRequest) error {
	logrus.Debugf("revoking key: %+v", request)

	if err := s.storage.RevokeKey(ctx, request.ID, time.Now().Format(time.RFC3339)); err != nil {
		return util.LoggingErrorMsgf(err, "could not revoke key: %s", request.ID)
	}
	return nil
}

// GetKeyAccess builds a signer/verifier for the stored key. Revoked keys cannot sign.
func (s *Service) GetKeyAccess(ctx context.Context, keyID string) (*keyaccess.JWKKeyAccess, error) {
	gotKey, err := s.GetKey(ctx, GetKeyRequest{ID: keyID})
	if err != nil {
		return nil, errors.Wrapf(err, "getting key with keyID<%s>", keyID)
	}
	if gotKey.Revoked {
		return nil, util.LoggingNewErrorf("cannot use revoked key<%s>", gotKey.ID)
	}
	ka, err := keyaccess.NewJWKKeyAccess(gotKey.Controller, gotKey.ID, gotKey.Key)
	if err != nil {
		return nil, errors.Wrapf(err, "creating key access for keyID<%s>", keyID)
	}
	return ka, nil
}

// Sign fetches the key in the store and uses it to sign the given claims
func (s *Service) Sign(ctx context.Context, keyID string, claims map[string]any) (*keyaccess.JWT, error) {
	keyAccess, err := s.GetKeyAccess(ctx, keyID)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "creating key access for keyID<%s>", keyID)
	}
	token, err := keyAccess.Sign(claims)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "signing with keyID<%s>", keyID)
	}
	return token, nil
}

// KeyID is the convention for naming a controller's signing key within its DID document
func KeyID(controller string) string {
	return fmt.Sprintf("%s#primary", controller)
}
