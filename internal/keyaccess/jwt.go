// Package keyaccess wraps JWT signing and verification so services never
// handle raw signature bytes themselves.
package keyaccess

import (
	"crypto/ed25519"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
)

type JWT string

func (j JWT) String() string {
	return string(j)
}

func (j JWT) Ptr() *JWT {
	return &j
}

// JWKKeyAccess holds a signer and/or verifier for a single key. The id is the
// controlling DID, the kid names the key within its DID document.
type JWKKeyAccess struct {
	id       string
	kid      string
	signer   jwk.Key
	verifier jwk.Key
}

// NewJWKKeyAccess creates a JWKKeyAccess object from an id, key id, and private key, generating both
// signer and verifier objects.
func NewJWKKeyAccess(id, kid string, key ed25519.PrivateKey) (*JWKKeyAccess, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}
	if kid == "" {
		return nil, errors.New("kid cannot be empty")
	}
	if key == nil {
		return nil, errors.New("key cannot be nil")
	}
	signer, err := jwk.FromRaw(key)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create JWK Key Access object for kid: %s, error creating signer", kid)
	}
	if err = setKeyMetadata(signer, kid); err != nil {
		return nil, err
	}
	verifier, err := jwk.PublicKeyOf(signer)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create JWK Key Access object for kid: %s, error creating verifier", kid)
	}
	return &JWKKeyAccess{
		id:       id,
		kid:      kid,
		signer:   signer,
		verifier: verifier,
	}, nil
}

// NewJWKKeyAccessVerifier creates a JWKKeyAccess object from an id, key id, and public key, generating
// a verifier object only.
func NewJWKKeyAccessVerifier(id, kid string, key ed25519.PublicKey) (*JWKKeyAccess, error) {
	if id == "" {
		return nil, errors.New("id cannot be empty")
	}
	if kid == "" {
		return nil, errors.New("kid cannot be empty")
	}
	if key == nil {
		return nil, errors.New("key cannot be nil")
	}
	verifier, err := jwk.FromRaw(key)
	if err != nil {
		return nil, errors.Wrapf(err, "could not create JWK Key Access object for kid: %s, error creating verifier", kid)
	}
	if err = setKeyMetadata(verifier, kid); err != nil {
		return nil, err
	}
	return &JWKKeyAccess{id: id, kid: kid, verifier: verifier}, nil
}

func setKeyMetadata(key jwk.Key, kid string) error {
	if err := key.Set(jwk.KeyIDKey, kid); err != nil {
		return errors.Wrap(err, "setting kid")
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.EdDSA); err != nil {
		return errors.Wrap(err, "setting algorithm")
	}
	return nil
}

func (ka JWKKeyAccess) ID() string {
	return ka.id
}

func (ka JWKKeyAccess) KID() string {
	return ka.kid
}

// Sign builds a JWT from the given claims and signs it, producing the token's
// canonical byte form (a compact JWS).
func (ka JWKKeyAccess) Sign(claims map[string]any) (*JWT, error) {
	if ka.signer == nil {
		return nil, errors.New("cannot sign with nil signer")
	}
	if claims == nil {
		return nil, errors.New("claims cannot be nil")
	}
	token := jwt.New()
	for k, v := range claims {
		if err := token.Set(k, v); err != nil {
			return nil, errors.Wrapf(err, "setting claim<%s>", k)
		}
	}
	tokenBytes, err := jwt.Sign(token, jwt.WithKey(jwa.EdDSA, ka.signer))
	if err != nil {
		return nil, errors.Wrap(err, "could not sign claims")
	}
	return JWT(tokenBytes).Ptr(), nil
}

// Verify checks the token's signature against this key access' verifier.
func (ka JWKKeyAccess) Verify(token JWT) error {
	if token == "" {
		return errors.New("token cannot be empty")
	}
	_, err := jws.Verify([]byte(token), jws.WithKey(jwa.EdDSA, ka.verifier))
	return err
}

// ParseVerified verifies the token signature and returns the parsed claims.
// Time-based claims are deliberately not validated here; protocol-level expiry
// is the caller's concern.
func (ka JWKKeyAccess) ParseVerified(token JWT) (jwt.Token, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}
	parsed, err := jwt.Parse([]byte(token), jwt.WithKey(jwa.EdDSA, ka.verifier), jwt.WithValidate(false))
	if err != nil {
		return nil, errors.Wrap(err, "parsing and verifying token")
	}
	return parsed, nil
}

// ParseUnverified parses a token's claims without checking its signature.
// Used only to discover the signer before resolution; never trust the result.
func ParseUnverified(token JWT) (jwt.Token, error) {
	if token == "" {
		return nil, errors.New("token cannot be empty")
	}
	parsed, err := jwt.ParseInsecure([]byte(token))
	if err != nil {
		return nil, errors.Wrap(err, "parsing token")
	}
	return parsed, nil
}
