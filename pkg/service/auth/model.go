package auth

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Kind names the flow a session was initiated for
type Kind string

const (
	KindSignUp         Kind = "signUp"
	KindSignIn         Kind = "signIn"
	KindForgotPassword Kind = "forgotPassword"
	KindChangeEmail    Kind = "changeEmail"
)

// Status is a session's lifecycle state. Exhausted sessions are tombstones:
// they refuse every later attempt without consulting the provider.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExhausted Status = "exhausted"
)

// Session is one pending confirmation-code cycle, keyed by its token
type Session struct {
	Token      string `json:"token"`
	Identifier string `json:"identifier"`
	Kind       Kind   `json:"kind"`
	// NewIdentifier is set for identifier-change sessions only; the code is
	// delivered to it rather than to Identifier.
	NewIdentifier string    `json:"newIdentifier,omitempty"`
	AttemptCount  int       `json:"attemptCount"`
	Status        Status    `json:"status"`
	IsNew         bool      `json:"isNew"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

// codeRecipient is the identifier the confirmation code was delivered to
func (s Session) codeRecipient() string {
	if s.Kind == KindChangeEmail && s.NewIdentifier != "" {
		return s.NewIdentifier
	}
	return s.Identifier
}

const codePlaceholder = "{{CODE}}"

// MessageTemplate customizes the out-of-band message carrying the code. The
// provider substitutes the placeholder; caller-supplied tokens pass through
// untouched.
type MessageTemplate struct {
	Message string `json:"message"`
	Subject string `json:"subject,omitempty"`
}

func (m MessageTemplate) Validate() error {
	if m.Message != "" && !strings.Contains(m.Message, codePlaceholder) {
		return errors.Errorf("message template must contain the %s placeholder", codePlaceholder)
	}
	return nil
}

// Identity is the authenticated network member a completed session resolves to
type Identity struct {
	Identifier string `json:"identifier"`
	DID        string `json:"did"`
}

type InitiateSignUpRequest struct {
	Identifier string           `json:"identifier" validate:"required"`
	Password   string           `json:"password,omitempty"`
	Template   *MessageTemplate `json:"messageTemplate,omitempty"`
}

type InitiateSignInRequest struct {
	Identifier string           `json:"identifier" validate:"required"`
	Template   *MessageTemplate `json:"messageTemplate,omitempty"`
}

type InitiateResponse struct {
	SessionToken string `json:"sessionToken"`
}

type CompleteRequest struct {
	SessionToken string `json:"sessionToken" validate:"required"`
	Code         string `json:"code" validate:"required"`
}

type CompleteResponse struct {
	IsNew    bool     `json:"isNew"`
	Identity Identity `json:"identity"`
}

type ResendCodeRequest struct {
	SessionToken string           `json:"sessionToken" validate:"required"`
	Template     *MessageTemplate `json:"messageTemplate,omitempty"`
}

type InitiateForgotPasswordRequest struct {
	Identifier string           `json:"identifier" validate:"required"`
	Template   *MessageTemplate `json:"messageTemplate,omitempty"`
}

type CompleteForgotPasswordRequest struct {
	SessionToken string `json:"sessionToken" validate:"required"`
	Code         string `json:"code" validate:"required"`
	NewPassword  string `json:"newPassword" validate:"required"`
}

type InitiateChangeEmailOrPhoneRequest struct {
	Identifier    string           `json:"identifier" validate:"required"`
	NewIdentifier string           `json:"newIdentifier" validate:"required"`
	Template      *MessageTemplate `json:"messageTemplate,omitempty"`
}
