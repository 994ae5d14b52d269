package did

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/pkg/storage"
)

const didNamespace = "did"

var memberNamespace = storage.MakeNamespace(didNamespace, "member")

type Storage struct {
	db storage.ServiceStorage
}

func NewDIDStorage(db storage.ServiceStorage) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db reference is nil")
	}
	return &Storage{db: db}, nil
}

func (s *Storage) StoreDID(ctx context.Context, did StoredDID) error {
	if did.DID == "" {
		return errors.New("could not store did without an id")
	}
	didBytes, err := json.Marshal(did)
	if err != nil {
		return errors.Wrapf(err, "marshalling did<%s>", did.DID)
	}
	return s.db.Write(ctx, didNamespace, did.DID, didBytes)
}

func (s *Storage) GetDID(ctx context.Context, id string) (*StoredDID, error) {
	docBytes, err := s.db.Read(ctx, didNamespace, id)
	if err != nil {
		return nil, errors.Wrapf(err, "reading did<%s>", id)
	}
	if docBytes == nil {
		return nil, nil
	}
	var stored StoredDID
	if err = json.Unmarshal(docBytes, &stored); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling did<%s>", id)
	}
	return &stored, nil
}

func (s *Storage) ListDIDs(ctx context.Context) ([]StoredDID, error) {
	gotDIDs, err := s.db.ReadAll(ctx, didNamespace)
	if err != nil {
		return nil, errors.Wrap(err, "reading dids")
	}
	stored := make([]StoredDID, 0, len(gotDIDs))
	for key, didBytes := range gotDIDs {
		var nextDID StoredDID
		if err = json.Unmarshal(didBytes, &nextDID); err != nil {
			return nil, errors.Wrapf(err, "unmarshalling did<%s>", key)
		}
		stored = append(stored, nextDID)
	}
	return stored, nil
}

func (s *Storage) StoreMember(ctx context.Context, member Member) error {
	if member.Identifier == "" {
		return errors.New("could not store member without an identifier")
	}
	memberBytes, err := json.Marshal(member)
	if err != nil {
		return errors.Wrapf(err, "marshalling member<%s>", member.Identifier)
	}
	return s.db.Write(ctx, memberNamespace, member.Identifier, memberBytes)
}

func (s *Storage) GetMember(ctx context.Context, identifier string) (*Member, error) {
	memberBytes, err := s.db.Read(ctx, memberNamespace, identifier)
	if err != nil {
		return nil, errors.Wrapf(err, "reading member<%s>", identifier)
	}
	if memberBytes == nil {
		return nil, nil
	}
	var member Member
	if err = json.Unmarshal(memberBytes, &member); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling member<%s>", identifier)
	}
	return &member, nil
}

func (s *Storage) DeleteMember(ctx context.Context, identifier string) error {
	return s.db.Delete(ctx, memberNamespace, identifier)
}
