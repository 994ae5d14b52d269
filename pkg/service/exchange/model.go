package exchange

import (
	"github.com/affinity-network/exchange-service/internal/keyaccess"
)

// OfferedCredential names a credential schema an issuer is willing to issue
type OfferedCredential struct {
	Type string `json:"type" validate:"required"`
}

// CredentialRequirement is a verifier-declared allow-list: it is satisfied by
// any credential whose type set is a superset of Type.
type CredentialRequirement struct {
	Type []string `json:"type" validate:"required"`
}

// SignedCredential is an issuer-signed verifiable credential. The JWT is the
// canonical form; ID is derived from its signature, so equal content signed
// twice yields distinct credentials.
type SignedCredential struct {
	ID            string        `json:"id"`
	Type          []string      `json:"type"`
	IssuerDID     string        `json:"issuer"`
	CredentialJWT keyaccess.JWT `json:"credentialJwt"`
}

// Verdict is the result of verifying a response token against its request.
// Protocol rejections are verdicts with IsValid false; only infrastructure
// failures surface as errors.
type Verdict struct {
	IsValid              bool               `json:"isValid"`
	SelectedTypes        []string           `json:"selectedTypes,omitempty"`
	SuppliedCredentials  []SignedCredential `json:"suppliedCredentials,omitempty"`
	SuppliedPresentation *keyaccess.JWT     `json:"suppliedPresentation,omitempty"`
	FailureReason        string             `json:"failureReason,omitempty"`
}

type GenerateOfferRequestRequest struct {
	IssuerDID          string              `json:"issuerDid" validate:"required"`
	OfferedCredentials []OfferedCredential `json:"offeredCredentials" validate:"required"`
}

type GenerateOfferRequestResponse struct {
	OfferRequestToken keyaccess.JWT `json:"offerRequestToken"`
}

type CreateOfferResponseRequest struct {
	HolderDID         string        `json:"holderDid" validate:"required"`
	OfferRequestToken keyaccess.JWT `json:"offerRequestToken" validate:"required"`
	SelectedTypes     []string      `json:"selectedTypes" validate:"required"`
}

type CreateOfferResponseResponse struct {
	OfferResponseToken keyaccess.JWT `json:"offerResponseToken"`
}

type VerifyOfferResponseRequest struct {
	OfferResponseToken keyaccess.JWT `json:"offerResponseToken" validate:"required"`
	OfferRequestToken  keyaccess.JWT `json:"offerRequestToken" validate:"required"`
}

type SignCredentialRequest struct {
	IssuerDID  string         `json:"issuerDid" validate:"required"`
	SubjectDID string         `json:"subjectDid"`
	Types      []string       `json:"types" validate:"required"`
	Subject    map[string]any `json:"credentialSubject" validate:"required"`

	// when present, issuance is gated on a verified offer exchange; when
	// absent the issuance is unsolicited
	OfferResponseToken *keyaccess.JWT `json:"offerResponseToken,omitempty"`
	OfferRequestToken  *keyaccess.JWT `json:"offerRequestToken,omitempty"`
}

type SignCredentialResponse struct {
	Credential SignedCredential `json:"credential"`
}

type GetCredentialRequest struct {
	ID string `json:"id" validate:"required"`
}

type GetCredentialResponse struct {
	Credential SignedCredential `json:"credential"`
}

type GenerateShareRequestRequest struct {
	VerifierDID  string                  `json:"verifierDid" validate:"required"`
	Requirements []CredentialRequirement `json:"requirements" validate:"required"`
}

type GenerateShareRequestResponse struct {
	ShareRequestToken keyaccess.JWT `json:"shareRequestToken"`
}

type SelectShareCredentialsRequest struct {
	ShareRequestToken keyaccess.JWT      `json:"shareRequestToken" validate:"required"`
	HeldCredentials   []SignedCredential `json:"heldCredentials" validate:"required"`
}

type SelectShareCredentialsResponse struct {
	SelectedCredentials []SignedCredential `json:"selectedCredentials"`
}

type CreateShareResponseRequest struct {
	HolderDID         string             `json:"holderDid" validate:"required"`
	ShareRequestToken keyaccess.JWT      `json:"shareRequestToken" validate:"required"`
	Credentials       []SignedCredential `json:"credentials" validate:"required"`
}

type CreateShareResponseResponse struct {
	ShareResponseToken keyaccess.JWT `json:"shareResponseToken"`
}

type VerifyShareResponseRequest struct {
	ShareResponseToken keyaccess.JWT `json:"shareResponseToken" validate:"required"`
	ShareRequestToken  keyaccess.JWT `json:"shareRequestToken" validate:"required"`
}

type GeneratePresentationChallengeRequest struct {
	VerifierDID  string                  `json:"verifierDid" validate:"required"`
	Requirements []CredentialRequirement `json:"requirements" validate:"required"`
	Domain       string                  `json:"domain" validate:"required"`
}

type GeneratePresentationChallengeResponse struct {
	ChallengeToken keyaccess.JWT `json:"challengeToken"`
}

type CreatePresentationRequest struct {
	HolderDID      string             `json:"holderDid" validate:"required"`
	ChallengeToken keyaccess.JWT      `json:"challengeToken" validate:"required"`
	Credentials    []SignedCredential `json:"credentials" validate:"required"`
	Domain         string             `json:"domain" validate:"required"`
}

type CreatePresentationResponse struct {
	PresentationToken keyaccess.JWT `json:"presentationToken"`
}

type VerifyPresentationRequest struct {
	PresentationToken keyaccess.JWT `json:"presentationToken" validate:"required"`
	ChallengeToken    keyaccess.JWT `json:"challengeToken" validate:"required"`
}
