// Package exchange implements the credential exchange protocol: offer, share,
// and challenge-bound presentation flows between issuers, holders, and
// verifiers, each a signed request token answered by a signed response token.
package exchange

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/affinity-network/exchange-service/config"
	didint "github.com/affinity-network/exchange-service/internal/did"
	"github.com/affinity-network/exchange-service/internal/keyaccess"
	"github.com/affinity-network/exchange-service/internal/util"
	"github.com/affinity-network/exchange-service/pkg/service/common"
	"github.com/affinity-network/exchange-service/pkg/service/framework"
	"github.com/affinity-network/exchange-service/pkg/service/keystore"
	"github.com/affinity-network/exchange-service/pkg/storage"
)

// Service is the exchange protocol engine. It holds no per-exchange state:
// callers correlate requests and responses, and every verification is a pure
// check of the supplied token pair.
type Service struct {
	config  config.ExchangeConfig
	storage *Storage
	codec   codec
}

func (s *Service) Type() framework.Type {
	return framework.Exchange
}

func (s *Service) Status() framework.Status {
	if s.storage == nil || s.codec.keystore == nil || s.codec.resolver == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "exchange service is not ready: missing dependencies",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s *Service) Config() config.ExchangeConfig {
	return s.config
}

func NewExchangeService(cfg config.ExchangeConfig, db storage.ServiceStorage, keyStore *keystore.Service, resolver didint.Resolver) (*Service, error) {
	exchangeStorage, err := NewExchangeStorage(db)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating storage for the exchange service")
	}
	service := Service{
		config:  cfg,
		storage: exchangeStorage,
		codec:   codec{keystore: keyStore, resolver: resolver},
	}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

// verdictFromError turns a protocol-level rejection into an invalid verdict.
// Infrastructure failures stay errors so the caller can retry without
// mistaking them for a rejection.
func verdictFromError(err error) (*Verdict, error) {
	if common.IsCode(err, common.CapabilityUnavailable) {
		return nil, err
	}
	return &Verdict{IsValid: false, FailureReason: err.Error()}, nil
}

// GenerateOfferRequest mints an issuer-signed offer naming the credential
// types on offer. The token expires after the configured request TTL.
func (s *Service) GenerateOfferRequest(ctx context.Context, request GenerateOfferRequestRequest) (*GenerateOfferRequestResponse, error) {
	logrus.Debugf("generating offer request for issuer: %s", request.IssuerDID)

	token, err := s.codec.mint(ctx, mintInput{
		signerDID: request.IssuerDID,
		kind:      KindOfferRequest,
		nonce:     uuid.NewString(),
		expiresAt: time.Now().Add(s.config.RequestTTL),
		claims:    map[string]any{offeredClaim: request.OfferedCredentials},
	})
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "minting offer request")
	}
	return &GenerateOfferRequestResponse{OfferRequestToken: *token}, nil
}

// CreateOfferResponse mints the holder's answer to an offer request. The
// selection is not checked against the offer here: a non-subset selection is a
// decline, detected by the issuer at verification.
func (s *Service) CreateOfferResponse(ctx context.Context, request CreateOfferResponseRequest) (*CreateOfferResponseResponse, error) {
	logrus.Debugf("creating offer response for holder: %s", request.HolderDID)

	offerRequest, err := s.codec.verify(ctx, request.OfferRequestToken, KindOfferRequest)
	if err != nil {
		return nil, errors.Wrap(err, "verifying offer request")
	}
	if err = checkNotStale(offerRequest, time.Now()); err != nil {
		return nil, err
	}
	token, err := s.codec.mint(ctx, mintInput{
		signerDID: request.HolderDID,
		kind:      KindOfferResponse,
		nonce:     offerRequest.JwtID(),
		claims:    map[string]any{selectedClaim: request.SelectedTypes},
	})
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "minting offer response")
	}
	return &CreateOfferResponseResponse{OfferResponseToken: *token}, nil
}

// VerifyOfferResponse checks a holder's response against the issuer's original
// request: both signatures, nonce equality, request freshness, and that every
// selected type was actually offered.
func (s *Service) VerifyOfferResponse(ctx context.Context, request VerifyOfferResponseRequest) (*Verdict, error) {
	offerRequest, err := s.codec.verify(ctx, request.OfferRequestToken, KindOfferRequest)
	if err != nil {
		return verdictFromError(errors.Wrap(err, "verifying offer request"))
	}
	if err = checkNotStale(offerRequest, time.Now()); err != nil {
		return verdictFromError(err)
	}
	offerResponse, err := s.codec.verify(ctx, request.OfferResponseToken, KindOfferResponse)
	if err != nil {
		return verdictFromError(errors.Wrap(err, "verifying offer response"))
	}
	if offerResponse.JwtID() != offerRequest.JwtID() {
		return verdictFromError(errors.New("response nonce does not match the request nonce"))
	}

	var offered []OfferedCredential
	if err = decodeClaim(offerRequest, offeredClaim, &offered); err != nil {
		return verdictFromError(err)
	}
	var selected []string
	if err = decodeClaim(offerResponse, selectedClaim, &selected); err != nil {
		return verdictFromError(err)
	}
	offeredTypes := make(map[string]struct{}, len(offered))
	for _, o := range offered {
		offeredTypes[o.Type] = struct{}{}
	}
	for _, t := range selected {
		if _, ok := offeredTypes[t]; !ok {
			return verdictFromError(errors.Errorf("credential type not offered: %s", t))
		}
	}
	return &Verdict{IsValid: true, SelectedTypes: selected}, nil
}

// SignCredential issues a credential as an issuer-signed JWT. When an offer
// exchange is supplied it must verify first; without one the issuance is
// unsolicited. The credential id is derived from the signature, so the
// credential is content addressed.
func (s *Service) SignCredential(ctx context.Context, request SignCredentialRequest) (*SignCredentialResponse, error) {
	logrus.Debugf("signing credential for issuer: %s", request.IssuerDID)

	if request.OfferResponseToken != nil {
		if request.OfferRequestToken == nil {
			return nil, util.LoggingNewError("an offer response cannot be checked without its offer request")
		}
		verdict, err := s.VerifyOfferResponse(ctx, VerifyOfferResponseRequest{
			OfferResponseToken: *request.OfferResponseToken,
			OfferRequestToken:  *request.OfferRequestToken,
		})
		if err != nil {
			return nil, err
		}
		if !verdict.IsValid {
			return nil, util.LoggingNewErrorf("offer exchange did not verify: %s", verdict.FailureReason)
		}
	}

	claims := map[string]any{
		typeClaim:    request.Types,
		subjectClaim: request.Subject,
	}
	if request.SubjectDID != "" {
		claims["sub"] = request.SubjectDID
	}
	token, err := s.codec.mint(ctx, mintInput{
		signerDID: request.IssuerDID,
		kind:      KindCredential,
		nonce:     uuid.NewString(),
		claims:    claims,
	})
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "minting credential")
	}

	credential := SignedCredential{
		ID:            credentialID(*token),
		Type:          request.Types,
		IssuerDID:     request.IssuerDID,
		CredentialJWT: *token,
	}
	if err = s.storage.StoreCredential(ctx, credential); err != nil {
		return nil, util.LoggingErrorMsgf(err, "storing credential<%s>", credential.ID)
	}
	return &SignCredentialResponse{Credential: credential}, nil
}

// credentialID derives a content address from the token's signature segment
func credentialID(token keyaccess.JWT) string {
	segments := strings.Split(token.String(), ".")
	digest := sha256.Sum256([]byte(segments[len(segments)-1]))
	return fmt.Sprintf("claimId:%s", hex.EncodeToString(digest[:16]))
}

func (s *Service) GetCredential(ctx context.Context, request GetCredentialRequest) (*GetCredentialResponse, error) {
	credential, err := s.storage.GetCredential(ctx, request.ID)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "getting credential<%s>", request.ID)
	}
	if credential == nil {
		return nil, util.LoggingNewErrorf("credential<%s> could not be found", request.ID)
	}
	return &GetCredentialResponse{Credential: *credential}, nil
}

// verifyCredential revalidates a supplied credential independently of the
// exchange that carried it.
func (s *Service) verifyCredential(ctx context.Context, credential SignedCredential) error {
	token, err := s.codec.verify(ctx, credential.CredentialJWT, KindCredential)
	if err != nil {
		return errors.Wrapf(err, "verifying credential<%s>", credential.ID)
	}
	if token.Issuer() != credential.IssuerDID {
		return common.NewErrorf(common.MalformedToken,
			"credential<%s> envelope names issuer %s but was signed by %s", credential.ID, credential.IssuerDID, token.Issuer())
	}
	return nil
}

// GenerateShareRequest mints a verifier-signed request declaring the
// credential requirements a holder must satisfy.
func (s *Service) GenerateShareRequest(ctx context.Context, request GenerateShareRequestRequest) (*GenerateShareRequestResponse, error) {
	logrus.Debugf("generating share request for verifier: %s", request.VerifierDID)

	token, err := s.codec.mint(ctx, mintInput{
		signerDID: request.VerifierDID,
		kind:      KindShareRequest,
		nonce:     uuid.NewString(),
		expiresAt: time.Now().Add(s.config.RequestTTL),
		claims:    map[string]any{requirementsClaim: request.Requirements},
	})
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "minting share request")
	}
	return &GenerateShareRequestResponse{ShareRequestToken: *token}, nil
}

// SelectShareCredentials runs the requirement matcher over the holder's
// credentials and fails fast, before any response is minted, when a
// requirement cannot be satisfied.
func (s *Service) SelectShareCredentials(ctx context.Context, request SelectShareCredentialsRequest) (*SelectShareCredentialsResponse, error) {
	shareRequest, err := s.codec.verify(ctx, request.ShareRequestToken, KindShareRequest)
	if err != nil {
		return nil, errors.Wrap(err, "verifying share request")
	}
	var requirements []CredentialRequirement
	if err = decodeClaim(shareRequest, requirementsClaim, &requirements); err != nil {
		return nil, err
	}
	selected, err := MatchRequirements(requirements, request.HeldCredentials)
	if err != nil {
		return nil, err
	}
	return &SelectShareCredentialsResponse{SelectedCredentials: selected}, nil
}

func (s *Service) CreateShareResponse(ctx context.Context, request CreateShareResponseRequest) (*CreateShareResponseResponse, error) {
	logrus.Debugf("creating share response for holder: %s", request.HolderDID)

	shareRequest, err := s.codec.verify(ctx, request.ShareRequestToken, KindShareRequest)
	if err != nil {
		return nil, errors.Wrap(err, "verifying share request")
	}
	if err = checkNotStale(shareRequest, time.Now()); err != nil {
		return nil, err
	}
	token, err := s.codec.mint(ctx, mintInput{
		signerDID: request.HolderDID,
		kind:      KindShareResponse,
		nonce:     shareRequest.JwtID(),
		claims:    map[string]any{suppliedClaim: request.Credentials},
	})
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "minting share response")
	}
	return &CreateShareResponseResponse{ShareResponseToken: *token}, nil
}

// VerifyShareResponse checks a share response against its request: both
// signatures, nonce equality, every requirement satisfied by the supplied
// credentials, and every supplied credential independently signature-valid.
func (s *Service) VerifyShareResponse(ctx context.Context, request VerifyShareResponseRequest) (*Verdict, error) {
	shareRequest, err := s.codec.verify(ctx, request.ShareRequestToken, KindShareRequest)
	if err != nil {
		return verdictFromError(errors.Wrap(err, "verifying share request"))
	}
	if err = checkNotStale(shareRequest, time.Now()); err != nil {
		return verdictFromError(err)
	}
	shareResponse, err := s.codec.verify(ctx, request.ShareResponseToken, KindShareResponse)
	if err != nil {
		return verdictFromError(errors.Wrap(err, "verifying share response"))
	}
	if shareResponse.JwtID() != shareRequest.JwtID() {
		return verdictFromError(errors.New("response nonce does not match the request nonce"))
	}

	var requirements []CredentialRequirement
	if err = decodeClaim(shareRequest, requirementsClaim, &requirements); err != nil {
		return verdictFromError(err)
	}
	var supplied []SignedCredential
	if err = decodeClaim(shareResponse, suppliedClaim, &supplied); err != nil {
		return verdictFromError(err)
	}
	if _, err = MatchRequirements(requirements, supplied); err != nil {
		return verdictFromError(err)
	}
	for _, credential := range supplied {
		if err = s.verifyCredential(ctx, credential); err != nil {
			if common.IsCode(err, common.CapabilityUnavailable) {
				return nil, err
			}
			return verdictFromError(err)
		}
	}
	return &Verdict{IsValid: true, SuppliedCredentials: supplied}, nil
}

// GeneratePresentationChallenge mints a share request additionally bound to
// the verifier's domain, for the W3C-style presentation path.
func (s *Service) GeneratePresentationChallenge(ctx context.Context, request GeneratePresentationChallengeRequest) (*GeneratePresentationChallengeResponse, error) {
	logrus.Debugf("generating presentation challenge for verifier: %s", request.VerifierDID)

	token, err := s.codec.mint(ctx, mintInput{
		signerDID: request.VerifierDID,
		kind:      KindPresentationChallenge,
		nonce:     uuid.NewString(),
		expiresAt: time.Now().Add(s.config.RequestTTL),
		claims: map[string]any{
			requirementsClaim: request.Requirements,
			domainClaim:       request.Domain,
		},
	})
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "minting presentation challenge")
	}
	return &GeneratePresentationChallengeResponse{ChallengeToken: *token}, nil
}

// CreatePresentationFromChallenge mints the holder's presentation envelope,
// binding the supplied credentials to the challenge nonce and the domain the
// holder believes it is answering.
func (s *Service) CreatePresentationFromChallenge(ctx context.Context, request CreatePresentationRequest) (*CreatePresentationResponse, error) {
	logrus.Debugf("creating presentation for holder: %s", request.HolderDID)

	challenge, err := s.codec.verify(ctx, request.ChallengeToken, KindPresentationChallenge)
	if err != nil {
		return nil, errors.Wrap(err, "verifying presentation challenge")
	}
	if err = checkNotStale(challenge, time.Now()); err != nil {
		return nil, err
	}
	token, err := s.codec.mint(ctx, mintInput{
		signerDID: request.HolderDID,
		kind:      KindPresentation,
		nonce:     uuid.NewString(),
		claims: map[string]any{
			presentedClaim: request.Credentials,
			challengeClaim: challenge.JwtID(),
			domainClaim:    request.Domain,
		},
	})
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "minting presentation")
	}
	return &CreatePresentationResponse{PresentationToken: *token}, nil
}

// VerifyPresentation applies the share response checks plus the challenge
// bindings: the presentation's challenge must equal the challenge's nonce and
// its domain must equal the domain the verifier issued, so a presentation
// crafted for a different verifier or an old challenge is rejected.
func (s *Service) VerifyPresentation(ctx context.Context, request VerifyPresentationRequest) (*Verdict, error) {
	challenge, err := s.codec.verify(ctx, request.ChallengeToken, KindPresentationChallenge)
	if err != nil {
		return verdictFromError(errors.Wrap(err, "verifying presentation challenge"))
	}
	if err = checkNotStale(challenge, time.Now()); err != nil {
		return verdictFromError(err)
	}
	presentation, err := s.codec.verify(ctx, request.PresentationToken, KindPresentation)
	if err != nil {
		return verdictFromError(errors.Wrap(err, "verifying presentation"))
	}

	boundNonce, err := stringClaim(presentation, challengeClaim)
	if err != nil {
		return verdictFromError(err)
	}
	if boundNonce != challenge.JwtID() {
		return verdictFromError(errors.New("presentation is bound to a different challenge"))
	}
	issuedDomain, err := stringClaim(challenge, domainClaim)
	if err != nil {
		return verdictFromError(err)
	}
	boundDomain, err := stringClaim(presentation, domainClaim)
	if err != nil {
		return verdictFromError(err)
	}
	if boundDomain != issuedDomain {
		return verdictFromError(errors.Errorf("presentation is bound to domain %q, challenge was issued for %q", boundDomain, issuedDomain))
	}

	var requirements []CredentialRequirement
	if err = decodeClaim(challenge, requirementsClaim, &requirements); err != nil {
		return verdictFromError(err)
	}
	var supplied []SignedCredential
	if err = decodeClaim(presentation, presentedClaim, &supplied); err != nil {
		return verdictFromError(err)
	}
	if _, err = MatchRequirements(requirements, supplied); err != nil {
		return verdictFromError(err)
	}
	for _, credential := range supplied {
		if err = s.verifyCredential(ctx, credential); err != nil {
			if common.IsCode(err, common.CapabilityUnavailable) {
				return nil, err
			}
			return verdictFromError(err)
		}
	}
	return &Verdict{
		IsValid:              true,
		SuppliedCredentials:  supplied,
		SuppliedPresentation: request.PresentationToken.Ptr(),
	}, nil
}
