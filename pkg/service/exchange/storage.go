package exchange

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/pkg/storage"
)

const credentialNamespace = "exchange-credential"

// Storage keeps the credentials this service has issued, keyed by their
// content-derived ids.
type Storage struct {
	db storage.ServiceStorage
}

func NewExchangeStorage(db storage.ServiceStorage) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db reference is nil")
	}
	return &Storage{db: db}, nil
}

func (s *Storage) StoreCredential(ctx context.Context, credential SignedCredential) error {
	if credential.ID == "" {
		return errors.New("could not store credential without an id")
	}
	credentialBytes, err := json.Marshal(credential)
	if err != nil {
		return errors.Wrapf(err, "marshalling credential<%s>", credential.ID)
	}
	return s.db.Write(ctx, credentialNamespace, credential.ID, credentialBytes)
}

func (s *Storage) GetCredential(ctx context.Context, id string) (*SignedCredential, error) {
	credentialBytes, err := s.db.Read(ctx, credentialNamespace, id)
	if err != nil {
		return nil, errors.Wrapf(err, "reading credential<%s>", id)
	}
	if credentialBytes == nil {
		return nil, nil
	}
	var credential SignedCredential
	if err = json.Unmarshal(credentialBytes, &credential); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling credential<%s>", id)
	}
	return &credential, nil
}

func (s *Storage) ListCredentials(ctx context.Context) ([]SignedCredential, error) {
	gotCredentials, err := s.db.ReadAll(ctx, credentialNamespace)
	if err != nil {
		return nil, errors.Wrap(err, "reading credentials")
	}
	credentials := make([]SignedCredential, 0, len(gotCredentials))
	for key, credentialBytes := range gotCredentials {
		var credential SignedCredential
		if err = json.Unmarshal(credentialBytes, &credential); err != nil {
			return nil, errors.Wrapf(err, "unmarshalling credential<%s>", key)
		}
		credentials = append(credentials, credential)
	}
	return credentials, nil
}
