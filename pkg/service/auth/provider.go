package auth

import (
	"context"
)

// IdentityProvider is the managed account capability the state machine wraps.
// It owns code generation and delivery; this service never sees or stores
// confirmation codes. Transient failures surface as
// common.CapabilityUnavailable and must not be translated into protocol
// rejections.
type IdentityProvider interface {
	// AccountExists reports whether a confirmed account holds the identifier
	AccountExists(ctx context.Context, identifier string) (bool, error)
	// Register creates an unconfirmed account; password may be empty for a
	// passwordless account
	Register(ctx context.Context, identifier, password string) error
	// ConfirmAccount marks the account confirmed after a successful code cycle
	ConfirmAccount(ctx context.Context, identifier string) error
	// SendCode generates and delivers a one-time code out of band, rendering
	// the template when one is supplied
	SendCode(ctx context.Context, identifier string, template *MessageTemplate) error
	// VerifyCode reports whether code matches the last one sent to identifier
	VerifyCode(ctx context.Context, identifier, code string) (bool, error)
	HasPassword(ctx context.Context, identifier string) (bool, error)
	SetPassword(ctx context.Context, identifier, password string) error
	ChangeIdentifier(ctx context.Context, oldIdentifier, newIdentifier string) error
}
