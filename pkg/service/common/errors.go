// Package common holds types shared across services, including the error
// taxonomy every protocol rejection is reported through.
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorCode is a stable, enumerable failure code. Callers branch on codes,
// never on message text.
type ErrorCode string

const (
	// CapabilityUnavailable indicates a transient infrastructure failure while calling an
	// external capability (registry, identity provider). Safe to retry; carries no
	// protocol-state side effects.
	CapabilityUnavailable ErrorCode = "COR-0"
	// WrongConfirmationCode is returned when a confirmation code does not match. Retryable
	// until the session's attempt ceiling is reached.
	WrongConfirmationCode ErrorCode = "COR-5"
	// IdentifierAlreadyRegistered is the duplicate-identity conflict raised at sign-up and
	// at identifier change.
	IdentifierAlreadyRegistered ErrorCode = "COR-7"
	// TooManyAttempts is terminal for a session: the attempt ceiling was reached and the
	// session is destroyed. The caller must re-initiate.
	TooManyAttempts ErrorCode = "COR-13"
	// SessionExpired is terminal and time-based, independent of the attempt count.
	SessionExpired ErrorCode = "COR-17"
	// MalformedToken indicates a token that is structurally invalid or not valid for the
	// operation it was presented to. Fatal to the current call.
	MalformedToken ErrorCode = "COR-20"
	// SignatureInvalid indicates a signature that does not verify against the signer's key.
	SignatureInvalid ErrorCode = "COR-21"
	// UnknownSigner indicates the signer's DID could not be resolved.
	UnknownSigner ErrorCode = "COR-22"
	// RequirementUnsatisfied indicates a credential requirement no held credential covers.
	RequirementUnsatisfied ErrorCode = "COR-23"
)

// Error is a typed failure with a stable code. It satisfies the error
// interface and unwraps to its cause, so errors.Is/As keep working through it.
type Error struct {
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a typed error with the given code and message
func NewError(code ErrorCode, msg string) error {
	return &Error{Code: code, Message: msg}
}

// NewErrorf creates a typed error with the given code and formatted message
func NewErrorf(code ErrorCode, msg string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(msg, args...)}
}

// WrapError attaches a code to an underlying cause
func WrapError(code ErrorCode, err error, msg string) error {
	return &Error{Code: code, Message: msg, cause: err}
}

// CodeOf extracts the ErrorCode from err, or empty string when err carries none
func CodeOf(err error) ErrorCode {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Code
	}
	return ""
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
