package did

import (
	"context"

	"github.com/pkg/errors"
)

// Resolver turns a DID into its current document. Implementations are network
// bound; resolution failures distinguish "unknown" from "unreachable".
type Resolver interface {
	Resolve(ctx context.Context, did string) (*Document, error)
}

// ResolveKey resolves the did and returns its verification key with the given
// kid (first key when kid is empty).
func ResolveKey(ctx context.Context, resolver Resolver, did, kid string) (*PublicKey, error) {
	if resolver == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	if err := IsValidDID(did); err != nil {
		return nil, errors.Wrapf(err, "invalid did: %s", did)
	}
	doc, err := resolver.Resolve(ctx, did)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving did: %s", did)
	}
	return doc.VerificationKey(kid)
}
