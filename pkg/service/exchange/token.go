package exchange

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"

	didint "github.com/affinity-network/exchange-service/internal/did"
	"github.com/affinity-network/exchange-service/internal/keyaccess"
	"github.com/affinity-network/exchange-service/pkg/service/common"
	"github.com/affinity-network/exchange-service/pkg/service/keystore"
)

// Kind tags each token variant the codec mints and verifies. The set is
// closed: an unexpected kind is a malformed token, not a new message.
type Kind string

const (
	KindOfferRequest          Kind = "credentialOfferRequest"
	KindOfferResponse         Kind = "credentialOfferResponse"
	KindShareRequest          Kind = "credentialShareRequest"
	KindShareResponse         Kind = "credentialShareResponse"
	KindPresentationChallenge Kind = "presentationChallenge"
	KindPresentation          Kind = "verifiablePresentation"
	KindCredential            Kind = "verifiableCredential"
)

const (
	kindClaim         = "typ"
	offeredClaim      = "offeredCredentials"
	selectedClaim     = "selectedTypes"
	requirementsClaim = "requirements"
	suppliedClaim     = "suppliedCredentials"
	presentedClaim    = "verifiableCredential"
	subjectClaim      = "credentialSubject"
	typeClaim         = "type"
	challengeClaim    = "challenge"
	domainClaim       = "domain"
)

// codec mints and verifies exchange tokens: compact EdDSA JWS whose claims
// carry the payload, with iss naming the signer DID and jti the nonce.
type codec struct {
	keystore *keystore.Service
	resolver didint.Resolver
}

type mintInput struct {
	signerDID string
	kind      Kind
	nonce     string
	expiresAt time.Time
	claims    map[string]any
}

func (c codec) mint(ctx context.Context, in mintInput) (*keyaccess.JWT, error) {
	claims := map[string]any{
		"iss":     in.signerDID,
		"jti":     in.nonce,
		"iat":     time.Now().Unix(),
		kindClaim: string(in.kind),
	}
	if !in.expiresAt.IsZero() {
		claims["exp"] = in.expiresAt.Unix()
	}
	for k, v := range in.claims {
		claims[k] = v
	}
	return c.keystore.Sign(ctx, keystore.KeyID(in.signerDID), claims)
}

// verify resolves the token's signer via its iss claim, checks the signature
// against the resolved key, and checks the token is of the expected kind.
// It does not enforce time claims; request expiry is a protocol-level check.
func (c codec) verify(ctx context.Context, token keyaccess.JWT, expected Kind) (jwt.Token, error) {
	unverified, err := keyaccess.ParseUnverified(token)
	if err != nil {
		return nil, common.WrapError(common.MalformedToken, err, "could not parse token")
	}
	issuer := unverified.Issuer()
	if issuer == "" {
		return nil, common.NewError(common.MalformedToken, "token has no issuer")
	}
	if err = didint.IsValidDID(issuer); err != nil {
		return nil, common.WrapError(common.MalformedToken, err, "token issuer is not a valid did")
	}

	publicKey, err := didint.ResolveKey(ctx, c.resolver, issuer, "")
	if err != nil {
		if common.IsCode(err, common.CapabilityUnavailable) || common.IsCode(err, common.UnknownSigner) {
			return nil, err
		}
		return nil, common.WrapError(common.UnknownSigner, err, "could not resolve signer: "+issuer)
	}
	pubKey, err := publicKey.DecodeKey()
	if err != nil {
		return nil, common.WrapError(common.UnknownSigner, err, "unusable key for signer: "+issuer)
	}
	verifier, err := keyaccess.NewJWKKeyAccessVerifier(issuer, publicKey.ID, pubKey)
	if err != nil {
		return nil, errors.Wrapf(err, "creating verifier for did<%s>", issuer)
	}
	verified, err := verifier.ParseVerified(token)
	if err != nil {
		return nil, common.WrapError(common.SignatureInvalid, err, "token signature does not verify for "+issuer)
	}

	if kind := tokenKind(verified); kind != expected {
		return nil, common.NewErrorf(common.MalformedToken, "expected a %s token, got %s", expected, kind)
	}
	return verified, nil
}

func tokenKind(token jwt.Token) Kind {
	v, ok := token.Get(kindClaim)
	if !ok {
		return ""
	}
	kind, ok := v.(string)
	if !ok {
		return ""
	}
	return Kind(kind)
}

// decodeClaim extracts a structured claim into out via a JSON round trip, as
// jwx surfaces nested claims as generic maps.
func decodeClaim(token jwt.Token, name string, out any) error {
	v, ok := token.Get(name)
	if !ok {
		return common.NewErrorf(common.MalformedToken, "token is missing the %s claim", name)
	}
	claimBytes, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "marshalling claim<%s>", name)
	}
	if err = json.Unmarshal(claimBytes, out); err != nil {
		return common.WrapError(common.MalformedToken, err, "could not decode the "+name+" claim")
	}
	return nil
}

func stringClaim(token jwt.Token, name string) (string, error) {
	v, ok := token.Get(name)
	if !ok {
		return "", common.NewErrorf(common.MalformedToken, "token is missing the %s claim", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", common.NewErrorf(common.MalformedToken, "the %s claim is not a string", name)
	}
	return s, nil
}

// checkNotStale rejects request tokens whose exp has passed. Tokens without an
// exp claim do not go stale.
func checkNotStale(token jwt.Token, now time.Time) error {
	exp := token.Expiration()
	if !exp.IsZero() && now.After(exp) {
		return errors.Errorf("request token expired at %s", exp.Format(time.RFC3339))
	}
	return nil
}
