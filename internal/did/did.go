// Package did models decentralized identifiers, their documents, and resolution.
package did

import (
	"crypto/ed25519"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

type Method string

const (
	ElemMethod Method = "elem"
	JoloMethod Method = "jolo"

	// Ed25519KeyType is the verification key type every supported method publishes
	Ed25519KeyType = "Ed25519VerificationKey2018"
)

// knownMethods is the closed registry of supported DID methods. Extend it here
// when a new method is onboarded.
var knownMethods = map[Method]struct{}{
	ElemMethod: {},
	JoloMethod: {},
}

func IsSupportedMethod(method Method) bool {
	_, ok := knownMethods[method]
	return ok
}

// GetMethodForDID gets a DID method from a did, the second part of the did (e.g. did:elem:abcd, the method is 'elem')
func GetMethodForDID(did string) (Method, error) {
	split := strings.Split(did, ":")
	if len(split) < 3 {
		return "", errors.New("malformed did: did has fewer than three parts")
	}
	if split[0] != "did" {
		return "", errors.New("malformed did: did must start with `did`")
	}
	if split[1] == "" || split[2] == "" {
		return "", errors.New("malformed did: empty method or method-specific id")
	}
	return Method(split[1]), nil
}

// IsValidDID checks the did against the grammar and the method registry
func IsValidDID(did string) error {
	method, err := GetMethodForDID(did)
	if err != nil {
		return err
	}
	if !IsSupportedMethod(method) {
		return errors.Errorf("unsupported did method: %s", method)
	}
	return nil
}

// PublicKey is a verification key entry within a DID document
type PublicKey struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	Controller      string `json:"controller"`
	PublicKeyBase58 string `json:"publicKeyBase58"`
}

// ServiceEndpoint is a service entry within a DID document
type ServiceEndpoint struct {
	ID              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// Document is the resolvable document a DID names: the identifier, its public
// keys, and its service endpoints.
type Document struct {
	Context        string            `json:"@context,omitempty"`
	ID             string            `json:"id"`
	PublicKey      []PublicKey       `json:"publicKey,omitempty"`
	Authentication []string          `json:"authentication,omitempty"`
	Service        []ServiceEndpoint `json:"service,omitempty"`
	Proof          any               `json:"proof,omitempty"`
}

// VerificationKey returns the document's key with the given kid, or its first
// key when kid is empty.
func (d Document) VerificationKey(kid string) (*PublicKey, error) {
	if len(d.PublicKey) == 0 {
		return nil, errors.Errorf("did document<%s> has no public keys", d.ID)
	}
	if kid == "" {
		return &d.PublicKey[0], nil
	}
	for i := range d.PublicKey {
		if d.PublicKey[i].ID == kid || strings.HasSuffix(d.PublicKey[i].ID, kid) {
			return &d.PublicKey[i], nil
		}
	}
	return nil, errors.Errorf("did document<%s> has no key with kid<%s>", d.ID, kid)
}

// DecodeKey turns a document's base58 key entry into a usable ed25519 public key
func (p PublicKey) DecodeKey() (ed25519.PublicKey, error) {
	if p.Type != Ed25519KeyType {
		return nil, errors.Errorf("unsupported key type: %s", p.Type)
	}
	keyBytes, err := base58.Decode(p.PublicKeyBase58)
	if err != nil {
		return nil, errors.Wrap(err, "decoding base58 key")
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return nil, errors.Errorf("expected %d byte key, got %d", ed25519.PublicKeySize, len(keyBytes))
	}
	return ed25519.PublicKey(keyBytes), nil
}
