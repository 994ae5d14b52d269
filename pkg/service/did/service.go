// Package did manages the DIDs this service controls: creating them, anchoring
// them with the registry, and binding them to authenticated network members.
package did

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/affinity-network/exchange-service/config"
	didint "github.com/affinity-network/exchange-service/internal/did"
	"github.com/affinity-network/exchange-service/internal/keyaccess"
	"github.com/affinity-network/exchange-service/internal/util"
	"github.com/affinity-network/exchange-service/pkg/registry"
	"github.com/affinity-network/exchange-service/pkg/service/framework"
	"github.com/affinity-network/exchange-service/pkg/service/keystore"
	"github.com/affinity-network/exchange-service/pkg/storage"
)

// Registry is the slice of the registry client this service depends on
type Registry interface {
	didint.Resolver
	PutDocument(ctx context.Context, document any) (string, error)
	TransactionCount(ctx context.Context, ethereumPublicKeyHex string) (int64, error)
	CreateAnchorTransaction(ctx context.Context, did string, nonce int64, documentAddress string) (string, error)
	AnchorDID(ctx context.Context, request registry.AnchorDIDRequest) (string, error)
}

type Service struct {
	config   config.DIDServiceConfig
	storage  *Storage
	keystore *keystore.Service
	registry Registry
	// members serializes member creation per identifier
	members util.KeyedMutex
}

func (s *Service) Type() framework.Type {
	return framework.DID
}

func (s *Service) Status() framework.Status {
	if s.storage == nil || s.keystore == nil || s.registry == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "did service is not ready: missing dependencies",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s *Service) Config() config.DIDServiceConfig {
	return s.config
}

func NewDIDService(cfg config.DIDServiceConfig, db storage.ServiceStorage, keyStore *keystore.Service, reg Registry) (*Service, error) {
	didStorage, err := NewDIDStorage(db)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating storage for the did service")
	}
	service := Service{config: cfg, storage: didStorage, keystore: keyStore, registry: reg}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// CreateDID generates a signing key, derives a DID from it, publishes the
// self-signed document to the registry, and anchors it on chain.
func (s *Service) CreateDID(ctx context.Context, request CreateDIDRequest) (*CreateDIDResponse, error) {
	logrus.Debugf("creating did: %+v", request)

	if !s.isConfiguredMethod(request.Method) {
		return nil, util.LoggingNewErrorf("unsupported did method: %s", request.Method)
	}

	did, pubKey, err := s.generateDID(ctx, request.Method)
	if err != nil {
		return nil, err
	}
	kid := keystore.KeyID(did)

	document := didint.Document{
		Context: "https://w3id.org/did/v1",
		ID:      did,
		PublicKey: []didint.PublicKey{{
			ID:              kid,
			Type:            didint.Ed25519KeyType,
			Controller:      did,
			PublicKeyBase58: base58.Encode(pubKey),
		}},
		Authentication: []string{kid},
	}
	if err = s.signDocument(ctx, kid, &document); err != nil {
		return nil, util.LoggingErrorMsgf(err, "signing document for did<%s>", did)
	}
	if err = s.anchorDID(ctx, did, hex.EncodeToString(pubKey), document); err != nil {
		return nil, util.LoggingErrorMsgf(err, "anchoring did<%s>", did)
	}

	stored := StoredDID{
		DID:       did,
		Method:    request.Method,
		Document:  document,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
	if err = s.storage.StoreDID(ctx, stored); err != nil {
		return nil, util.LoggingErrorMsgf(err, "storing did<%s>", did)
	}
	return &CreateDIDResponse{DID: did, Document: document}, nil
}

func (s *Service) isConfiguredMethod(method didint.Method) bool {
	if !didint.IsSupportedMethod(method) {
		return false
	}
	for _, m := range s.config.Methods {
		if didint.Method(m) == method {
			return true
		}
	}
	return false
}

// generateDID creates a signing key pair and names the DID after a digest of
// the public key, so the identifier commits to the initial key. The private
// key is stored exactly once, under its permanent id, so concurrent creations
// never observe each other's key material.
func (s *Service) generateDID(ctx context.Context, method didint.Method) (string, []byte, error) {
	pubKey, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, util.LoggingErrorMsg(err, "generating did key pair")
	}

	digest := sha256.Sum256(pubKey)
	did := fmt.Sprintf("did:%s:%s", method, base58.Encode(digest[:16]))

	if err = s.keystore.StoreKey(ctx, keystore.StoreKeyRequest{ID: keystore.KeyID(did), Controller: did, PrivateKey: privKey}); err != nil {
		return "", nil, util.LoggingErrorMsg(err, "storing did key")
	}
	return did, pubKey, nil
}

func (s *Service) signDocument(ctx context.Context, kid string, document *didint.Document) error {
	proofToken, err := s.keystore.Sign(ctx, kid, map[string]any{
		"iss":         document.ID,
		"didDocument": document,
	})
	if err != nil {
		return err
	}
	document.Proof = map[string]any{
		"type":               "Ed25519Signature2018",
		"created":            time.Now().Format(time.RFC3339),
		"verificationMethod": kid,
		"jws":                proofToken.String(),
	}
	return nil
}

func (s *Service) anchorDID(ctx context.Context, did, walletKeyHex string, document didint.Document) error {
	documentAddress, err := s.registry.PutDocument(ctx, document)
	if err != nil {
		return errors.Wrap(err, "publishing document")
	}
	nonce, err := s.registry.TransactionCount(ctx, walletKeyHex)
	if err != nil {
		return errors.Wrap(err, "getting transaction count")
	}
	digestHex, err := s.registry.CreateAnchorTransaction(ctx, did, nonce, documentAddress)
	if err != nil {
		return errors.Wrap(err, "creating anchor transaction")
	}
	transactionSignature, err := s.keystore.Sign(ctx, keystore.KeyID(did), map[string]any{
		"iss":       did,
		"digestHex": digestHex,
	})
	if err != nil {
		return errors.Wrap(err, "signing anchor transaction")
	}
	if _, err = s.registry.AnchorDID(ctx, registry.AnchorDIDRequest{
		DID:                  did,
		DIDDocumentAddress:   documentAddress,
		Nonce:                nonce,
		EthereumPublicKeyHex: walletKeyHex,
		TransactionSignature: transactionSignature.String(),
	}); err != nil {
		return errors.Wrap(err, "anchoring")
	}
	return nil
}

func (s *Service) GetDID(ctx context.Context, request GetDIDRequest) (*GetDIDResponse, error) {
	logrus.Debugf("getting did: %+v", request)

	stored, err := s.storage.GetDID(ctx, request.DID)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "getting did<%s>", request.DID)
	}
	if stored == nil {
		return nil, util.LoggingNewErrorf("did<%s> could not be found", request.DID)
	}
	return &GetDIDResponse{DID: stored.DID, Document: stored.Document}, nil
}

func (s *Service) ListDIDs(ctx context.Context) (*ListDIDsResponse, error) {
	stored, err := s.storage.ListDIDs(ctx)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "listing dids")
	}
	return &ListDIDsResponse{DIDs: stored}, nil
}

// ResolveDID resolves locally stored DIDs without a network round trip and
// falls back to the registry for everyone else's.
func (s *Service) ResolveDID(ctx context.Context, request ResolveDIDRequest) (*ResolveDIDResponse, error) {
	if err := didint.IsValidDID(request.DID); err != nil {
		return nil, util.LoggingErrorMsgf(err, "invalid did: %s", request.DID)
	}
	stored, err := s.storage.GetDID(ctx, request.DID)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "getting did<%s>", request.DID)
	}
	if stored != nil {
		return &ResolveDIDResponse{Document: stored.Document}, nil
	}
	document, err := s.registry.Resolve(ctx, request.DID)
	if err != nil {
		return nil, err
	}
	if err = s.verifyDocumentProof(ctx, request.DID, document); err != nil {
		return nil, util.LoggingErrorMsgf(err, "verifying proof for did<%s>", request.DID)
	}
	return &ResolveDIDResponse{Document: *document}, nil
}

// verifyDocumentProof checks a registry-served document against its own proof.
// A document that carries no proof is accepted as-is.
func (s *Service) verifyDocumentProof(ctx context.Context, id string, document *didint.Document) error {
	proof, ok := document.Proof.(map[string]any)
	if !ok {
		return nil
	}
	jws, ok := proof["jws"].(string)
	if !ok || jws == "" {
		return nil
	}
	kid, _ := proof["verificationMethod"].(string)
	return didint.VerifyTokenFromDID(ctx, s.registry, id, kid, keyaccess.JWT(jws))
}

// Resolve implements did.Resolver so the exchange service can verify tokens
// against locally controlled and registry-anchored documents alike.
func (s *Service) Resolve(ctx context.Context, did string) (*didint.Document, error) {
	resp, err := s.ResolveDID(ctx, ResolveDIDRequest{DID: did})
	if err != nil {
		return nil, err
	}
	return &resp.Document, nil
}

// LoadOrCreateMember returns the member bound to the identifier, creating a
// DID for first-time members. Used when a sign-up or unknown sign-in completes.
// Creation is serialized per identifier so racing completions cannot bind the
// same identifier to two DIDs.
func (s *Service) LoadOrCreateMember(ctx context.Context, identifier string) (*Member, error) {
	unlock := s.members.Lock(identifier)
	defer unlock()

	member, err := s.storage.GetMember(ctx, identifier)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "getting member<%s>", util.SanitizeLog(identifier))
	}
	if member != nil {
		return member, nil
	}

	method := didint.ElemMethod
	if len(s.config.Methods) > 0 {
		method = didint.Method(s.config.Methods[0])
	}
	created, err := s.CreateDID(ctx, CreateDIDRequest{Method: method})
	if err != nil {
		return nil, errors.Wrap(err, "creating member did")
	}
	member = &Member{
		Identifier: identifier,
		DID:        created.DID,
		CreatedAt:  time.Now().Format(time.RFC3339),
	}
	if err = s.storage.StoreMember(ctx, *member); err != nil {
		return nil, util.LoggingErrorMsgf(err, "storing member<%s>", util.SanitizeLog(identifier))
	}
	return member, nil
}

// GetMember returns the member bound to the identifier, or nil when unknown
func (s *Service) GetMember(ctx context.Context, identifier string) (*Member, error) {
	return s.storage.GetMember(ctx, identifier)
}

// ChangeMemberIdentifier re-binds a member's DID to a new identifier after an
// email or phone change is confirmed.
func (s *Service) ChangeMemberIdentifier(ctx context.Context, oldIdentifier, newIdentifier string) (*Member, error) {
	member, err := s.storage.GetMember(ctx, oldIdentifier)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "getting member<%s>", util.SanitizeLog(oldIdentifier))
	}
	if member == nil {
		return nil, util.LoggingNewErrorf("member<%s> could not be found", util.SanitizeLog(oldIdentifier))
	}
	rebound := Member{Identifier: newIdentifier, DID: member.DID, CreatedAt: member.CreatedAt}
	if err = s.storage.StoreMember(ctx, rebound); err != nil {
		return nil, util.LoggingErrorMsgf(err, "storing member<%s>", util.SanitizeLog(newIdentifier))
	}
	if err = s.storage.DeleteMember(ctx, oldIdentifier); err != nil {
		return nil, util.LoggingErrorMsgf(err, "removing member<%s>", util.SanitizeLog(oldIdentifier))
	}
	return &rebound, nil
}
