package did

import (
	"context"

	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/internal/keyaccess"
)

// VerifyTokenFromDID verifies that the provided token was signed by a key the
// did's document publishes: resolve the did, extract the public key for kid,
// and verify the token against it.
func VerifyTokenFromDID(ctx context.Context, resolver Resolver, did, kid string, token keyaccess.JWT) error {
	publicKey, err := ResolveKey(ctx, resolver, did, kid)
	if err != nil {
		return err
	}
	pubKey, err := publicKey.DecodeKey()
	if err != nil {
		return errors.Wrapf(err, "decoding key<%s> for did<%s>", publicKey.ID, did)
	}
	verifier, err := keyaccess.NewJWKKeyAccessVerifier(did, publicKey.ID, pubKey)
	if err != nil {
		return errors.Wrapf(err, "creating verifier for did<%s> with kid<%s>", did, kid)
	}
	if err = verifier.Verify(token); err != nil {
		return errors.Wrapf(err, "verifying token from did<%s>", did)
	}
	return nil
}
