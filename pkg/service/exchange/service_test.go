package exchange

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/affinity-network/exchange-service/config"
	didint "github.com/affinity-network/exchange-service/internal/did"
	"github.com/affinity-network/exchange-service/internal/keyaccess"
	"github.com/affinity-network/exchange-service/pkg/service/common"
	"github.com/affinity-network/exchange-service/pkg/service/keystore"
	"github.com/affinity-network/exchange-service/pkg/storage"
)

type staticResolver struct {
	documents map[string]didint.Document
}

func (r *staticResolver) Resolve(_ context.Context, did string) (*didint.Document, error) {
	doc, ok := r.documents[did]
	if !ok {
		return nil, common.NewErrorf(common.UnknownSigner, "could not resolve did: %s", did)
	}
	return &doc, nil
}

func testExchangeService(t *testing.T, ttl time.Duration) (*Service, *keystore.Service, *staticResolver) {
	db, err := storage.NewStorage(storage.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	keyStore, err := keystore.NewKeyStoreService(config.KeyStoreServiceConfig{
		BaseServiceConfig:  &config.BaseServiceConfig{Name: "keystore"},
		ServiceKeyPassword: "test-password",
	}, db)
	require.NoError(t, err)

	resolver := &staticResolver{documents: make(map[string]didint.Document)}
	service, err := NewExchangeService(config.ExchangeConfig{
		BaseServiceConfig: &config.BaseServiceConfig{Name: "exchange"},
		RequestTTL:        ttl,
	}, db, keyStore, resolver)
	require.NoError(t, err)
	return service, keyStore, resolver
}

// registerActor generates a signing key for the did and publishes its document
// to the resolver, standing in for a registry-anchored network member.
func registerActor(t *testing.T, keyStore *keystore.Service, resolver *staticResolver, did string) {
	kid := keystore.KeyID(did)
	generated, err := keyStore.GenerateKey(context.Background(), keystore.GenerateKeyRequest{ID: kid, Controller: did})
	require.NoError(t, err)
	resolver.documents[did] = didint.Document{
		ID: did,
		PublicKey: []didint.PublicKey{{
			ID:              kid,
			Type:            didint.Ed25519KeyType,
			Controller:      did,
			PublicKeyBase58: base58.Encode(generated.PublicKey),
		}},
		Authentication: []string{kid},
	}
}

const (
	issuerDID   = "did:elem:issuer"
	holderDID   = "did:elem:holder"
	verifierDID = "did:jolo:verifier"
)

func TestOfferFlow(t *testing.T) {
	service, keyStore, resolver := testExchangeService(t, 10*time.Minute)
	registerActor(t, keyStore, resolver, issuerDID)
	registerActor(t, keyStore, resolver, holderDID)
	ctx := context.Background()

	offer, err := service.GenerateOfferRequest(ctx, GenerateOfferRequestRequest{
		IssuerDID:          issuerDID,
		OfferedCredentials: []OfferedCredential{{Type: "EducationPersonV1"}},
	})
	require.NoError(t, err)

	t.Run("accepted response verifies", func(t *testing.T) {
		response, err := service.CreateOfferResponse(ctx, CreateOfferResponseRequest{
			HolderDID:         holderDID,
			OfferRequestToken: offer.OfferRequestToken,
			SelectedTypes:     []string{"EducationPersonV1"},
		})
		require.NoError(t, err)

		verdict, err := service.VerifyOfferResponse(ctx, VerifyOfferResponseRequest{
			OfferResponseToken: response.OfferResponseToken,
			OfferRequestToken:  offer.OfferRequestToken,
		})
		require.NoError(t, err)
		assert.True(t, verdict.IsValid)
		assert.Equal(t, []string{"EducationPersonV1"}, verdict.SelectedTypes)

		// verification has no side effects
		again, err := service.VerifyOfferResponse(ctx, VerifyOfferResponseRequest{
			OfferResponseToken: response.OfferResponseToken,
			OfferRequestToken:  offer.OfferRequestToken,
		})
		require.NoError(t, err)
		assert.Equal(t, verdict, again)
	})

	t.Run("selection outside the offer is a decline", func(t *testing.T) {
		response, err := service.CreateOfferResponse(ctx, CreateOfferResponseRequest{
			HolderDID:         holderDID,
			OfferRequestToken: offer.OfferRequestToken,
			SelectedTypes:     []string{"Unrelated"},
		})
		require.NoError(t, err)

		verdict, err := service.VerifyOfferResponse(ctx, VerifyOfferResponseRequest{
			OfferResponseToken: response.OfferResponseToken,
			OfferRequestToken:  offer.OfferRequestToken,
		})
		require.NoError(t, err)
		assert.False(t, verdict.IsValid)
		assert.Contains(t, verdict.FailureReason, "not offered")
	})

	t.Run("response to a different request is rejected", func(t *testing.T) {
		otherOffer, err := service.GenerateOfferRequest(ctx, GenerateOfferRequestRequest{
			IssuerDID:          issuerDID,
			OfferedCredentials: []OfferedCredential{{Type: "EducationPersonV1"}},
		})
		require.NoError(t, err)
		response, err := service.CreateOfferResponse(ctx, CreateOfferResponseRequest{
			HolderDID:         holderDID,
			OfferRequestToken: otherOffer.OfferRequestToken,
			SelectedTypes:     []string{"EducationPersonV1"},
		})
		require.NoError(t, err)

		verdict, err := service.VerifyOfferResponse(ctx, VerifyOfferResponseRequest{
			OfferResponseToken: response.OfferResponseToken,
			OfferRequestToken:  offer.OfferRequestToken,
		})
		require.NoError(t, err)
		assert.False(t, verdict.IsValid)
		assert.Contains(t, verdict.FailureReason, "nonce")
	})

	t.Run("expired request is rejected", func(t *testing.T) {
		staleService, staleKeyStore, staleResolver := testExchangeService(t, -time.Minute)
		registerActor(t, staleKeyStore, staleResolver, issuerDID)
		registerActor(t, staleKeyStore, staleResolver, holderDID)

		staleOffer, err := staleService.GenerateOfferRequest(ctx, GenerateOfferRequestRequest{
			IssuerDID:          issuerDID,
			OfferedCredentials: []OfferedCredential{{Type: "EducationPersonV1"}},
		})
		require.NoError(t, err)

		// the holder refuses to answer a stale request
		_, err = staleService.CreateOfferResponse(ctx, CreateOfferResponseRequest{
			HolderDID:         holderDID,
			OfferRequestToken: staleOffer.OfferRequestToken,
			SelectedTypes:     []string{"EducationPersonV1"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expired")
	})
}

func TestSignCredential(t *testing.T) {
	service, keyStore, resolver := testExchangeService(t, 10*time.Minute)
	registerActor(t, keyStore, resolver, issuerDID)
	registerActor(t, keyStore, resolver, holderDID)
	ctx := context.Background()

	offer, err := service.GenerateOfferRequest(ctx, GenerateOfferRequestRequest{
		IssuerDID:          issuerDID,
		OfferedCredentials: []OfferedCredential{{Type: "EducationPersonV1"}},
	})
	require.NoError(t, err)

	t.Run("issuance gated on a verified offer exchange", func(t *testing.T) {
		response, err := service.CreateOfferResponse(ctx, CreateOfferResponseRequest{
			HolderDID:         holderDID,
			OfferRequestToken: offer.OfferRequestToken,
			SelectedTypes:     []string{"EducationPersonV1"},
		})
		require.NoError(t, err)

		signed, err := service.SignCredential(ctx, SignCredentialRequest{
			IssuerDID:          issuerDID,
			SubjectDID:         holderDID,
			Types:              []string{"VerifiableCredential", "EducationPersonV1"},
			Subject:            map[string]any{"degree": "BSc"},
			OfferResponseToken: response.OfferResponseToken.Ptr(),
			OfferRequestToken:  offer.OfferRequestToken.Ptr(),
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(signed.Credential.ID, "claimId:"))
		assert.Equal(t, issuerDID, signed.Credential.IssuerDID)

		got, err := service.GetCredential(ctx, GetCredentialRequest{ID: signed.Credential.ID})
		require.NoError(t, err)
		assert.Equal(t, signed.Credential, got.Credential)
	})

	t.Run("issuance refused when the exchange does not verify", func(t *testing.T) {
		response, err := service.CreateOfferResponse(ctx, CreateOfferResponseRequest{
			HolderDID:         holderDID,
			OfferRequestToken: offer.OfferRequestToken,
			SelectedTypes:     []string{"Unrelated"},
		})
		require.NoError(t, err)

		_, err = service.SignCredential(ctx, SignCredentialRequest{
			IssuerDID:          issuerDID,
			Types:              []string{"VerifiableCredential", "Unrelated"},
			Subject:            map[string]any{},
			OfferResponseToken: response.OfferResponseToken.Ptr(),
			OfferRequestToken:  offer.OfferRequestToken.Ptr(),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "did not verify")
	})

	t.Run("unsolicited issuance", func(t *testing.T) {
		signed, err := service.SignCredential(ctx, SignCredentialRequest{
			IssuerDID: issuerDID,
			Types:     []string{"VerifiableCredential", "EmploymentPersonV1"},
			Subject:   map[string]any{"employer": "ACME"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, signed.Credential.CredentialJWT)
	})
}

func issueCredential(t *testing.T, service *Service, types []string) SignedCredential {
	signed, err := service.SignCredential(context.Background(), SignCredentialRequest{
		IssuerDID:  issuerDID,
		SubjectDID: holderDID,
		Types:      types,
		Subject:    map[string]any{"name": "holder"},
	})
	require.NoError(t, err)
	return signed.Credential
}

func TestShareFlow(t *testing.T) {
	service, keyStore, resolver := testExchangeService(t, 10*time.Minute)
	registerActor(t, keyStore, resolver, issuerDID)
	registerActor(t, keyStore, resolver, holderDID)
	registerActor(t, keyStore, resolver, verifierDID)
	ctx := context.Background()

	education := issueCredential(t, service, []string{"VerifiableCredential", "EducationPersonV1"})

	shareRequest, err := service.GenerateShareRequest(ctx, GenerateShareRequestRequest{
		VerifierDID:  verifierDID,
		Requirements: []CredentialRequirement{{Type: []string{"VerifiableCredential", "EducationPersonV1"}}},
	})
	require.NoError(t, err)

	t.Run("matcher selects then the response verifies", func(t *testing.T) {
		selected, err := service.SelectShareCredentials(ctx, SelectShareCredentialsRequest{
			ShareRequestToken: shareRequest.ShareRequestToken,
			HeldCredentials:   []SignedCredential{education},
		})
		require.NoError(t, err)
		require.Len(t, selected.SelectedCredentials, 1)

		response, err := service.CreateShareResponse(ctx, CreateShareResponseRequest{
			HolderDID:         holderDID,
			ShareRequestToken: shareRequest.ShareRequestToken,
			Credentials:       selected.SelectedCredentials,
		})
		require.NoError(t, err)

		verdict, err := service.VerifyShareResponse(ctx, VerifyShareResponseRequest{
			ShareResponseToken: response.ShareResponseToken,
			ShareRequestToken:  shareRequest.ShareRequestToken,
		})
		require.NoError(t, err)
		assert.True(t, verdict.IsValid)
		require.Len(t, verdict.SuppliedCredentials, 1)
		assert.Equal(t, education.ID, verdict.SuppliedCredentials[0].ID)
	})

	t.Run("selection fails fast when nothing satisfies", func(t *testing.T) {
		_, err := service.SelectShareCredentials(ctx, SelectShareCredentialsRequest{
			ShareRequestToken: shareRequest.ShareRequestToken,
			HeldCredentials: []SignedCredential{
				issueCredential(t, service, []string{"VerifiableCredential", "EmploymentPersonV1"}),
			},
		})
		require.Error(t, err)
		assert.True(t, common.IsCode(err, common.RequirementUnsatisfied))
	})

	t.Run("tampered credential signature invalidates the response", func(t *testing.T) {
		tampered := education
		tampered.CredentialJWT = keyaccess.JWT(tamperSignature(education.CredentialJWT.String()))

		response, err := service.CreateShareResponse(ctx, CreateShareResponseRequest{
			HolderDID:         holderDID,
			ShareRequestToken: shareRequest.ShareRequestToken,
			Credentials:       []SignedCredential{tampered},
		})
		require.NoError(t, err)

		verdict, err := service.VerifyShareResponse(ctx, VerifyShareResponseRequest{
			ShareResponseToken: response.ShareResponseToken,
			ShareRequestToken:  shareRequest.ShareRequestToken,
		})
		require.NoError(t, err)
		assert.False(t, verdict.IsValid)
		assert.Contains(t, verdict.FailureReason, education.ID)
	})

	t.Run("envelope issuer must match the credential signer", func(t *testing.T) {
		relabelled := education
		relabelled.IssuerDID = verifierDID

		response, err := service.CreateShareResponse(ctx, CreateShareResponseRequest{
			HolderDID:         holderDID,
			ShareRequestToken: shareRequest.ShareRequestToken,
			Credentials:       []SignedCredential{relabelled},
		})
		require.NoError(t, err)

		verdict, err := service.VerifyShareResponse(ctx, VerifyShareResponseRequest{
			ShareResponseToken: response.ShareResponseToken,
			ShareRequestToken:  shareRequest.ShareRequestToken,
		})
		require.NoError(t, err)
		assert.False(t, verdict.IsValid)
	})
}

// tamperSignature flips a character in the token's signature segment
func tamperSignature(token string) string {
	last := token[len(token)-1]
	flipped := byte('A')
	if last == 'A' {
		flipped = 'B'
	}
	return token[:len(token)-1] + string(flipped)
}

func TestPresentationFlow(t *testing.T) {
	service, keyStore, resolver := testExchangeService(t, 10*time.Minute)
	registerActor(t, keyStore, resolver, issuerDID)
	registerActor(t, keyStore, resolver, holderDID)
	registerActor(t, keyStore, resolver, verifierDID)
	ctx := context.Background()

	const domain = "https://verifier.example.com"
	education := issueCredential(t, service, []string{"VerifiableCredential", "EducationPersonV1"})

	challenge, err := service.GeneratePresentationChallenge(ctx, GeneratePresentationChallengeRequest{
		VerifierDID:  verifierDID,
		Requirements: []CredentialRequirement{{Type: []string{"EducationPersonV1"}}},
		Domain:       domain,
	})
	require.NoError(t, err)

	t.Run("domain and challenge bound presentation verifies", func(t *testing.T) {
		presentation, err := service.CreatePresentationFromChallenge(ctx, CreatePresentationRequest{
			HolderDID:      holderDID,
			ChallengeToken: challenge.ChallengeToken,
			Credentials:    []SignedCredential{education},
			Domain:         domain,
		})
		require.NoError(t, err)

		verdict, err := service.VerifyPresentation(ctx, VerifyPresentationRequest{
			PresentationToken: presentation.PresentationToken,
			ChallengeToken:    challenge.ChallengeToken,
		})
		require.NoError(t, err)
		assert.True(t, verdict.IsValid)
		assert.NotNil(t, verdict.SuppliedPresentation)
		require.Len(t, verdict.SuppliedCredentials, 1)

		again, err := service.VerifyPresentation(ctx, VerifyPresentationRequest{
			PresentationToken: presentation.PresentationToken,
			ChallengeToken:    challenge.ChallengeToken,
		})
		require.NoError(t, err)
		assert.Equal(t, verdict, again)
	})

	t.Run("wrong domain fails even with valid credentials", func(t *testing.T) {
		presentation, err := service.CreatePresentationFromChallenge(ctx, CreatePresentationRequest{
			HolderDID:      holderDID,
			ChallengeToken: challenge.ChallengeToken,
			Credentials:    []SignedCredential{education},
			Domain:         "https://evil.example.com",
		})
		require.NoError(t, err)

		verdict, err := service.VerifyPresentation(ctx, VerifyPresentationRequest{
			PresentationToken: presentation.PresentationToken,
			ChallengeToken:    challenge.ChallengeToken,
		})
		require.NoError(t, err)
		assert.False(t, verdict.IsValid)
		assert.Contains(t, verdict.FailureReason, "domain")
	})

	t.Run("presentation for another challenge is rejected", func(t *testing.T) {
		otherChallenge, err := service.GeneratePresentationChallenge(ctx, GeneratePresentationChallengeRequest{
			VerifierDID:  verifierDID,
			Requirements: []CredentialRequirement{{Type: []string{"EducationPersonV1"}}},
			Domain:       domain,
		})
		require.NoError(t, err)

		presentation, err := service.CreatePresentationFromChallenge(ctx, CreatePresentationRequest{
			HolderDID:      holderDID,
			ChallengeToken: otherChallenge.ChallengeToken,
			Credentials:    []SignedCredential{education},
			Domain:         domain,
		})
		require.NoError(t, err)

		verdict, err := service.VerifyPresentation(ctx, VerifyPresentationRequest{
			PresentationToken: presentation.PresentationToken,
			ChallengeToken:    challenge.ChallengeToken,
		})
		require.NoError(t, err)
		assert.False(t, verdict.IsValid)
		assert.Contains(t, verdict.FailureReason, "challenge")
	})
}
