// Package auth drives the passwordless authentication state machine: sign-up,
// sign-in, password reset, and identifier change, each a two-phase
// initiate/complete cycle confirmed by a one-time code with bounded retries.
package auth

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/affinity-network/exchange-service/config"
	"github.com/affinity-network/exchange-service/internal/util"
	"github.com/affinity-network/exchange-service/pkg/service/common"
	"github.com/affinity-network/exchange-service/pkg/service/did"
	"github.com/affinity-network/exchange-service/pkg/service/framework"
	"github.com/affinity-network/exchange-service/pkg/storage"
)

// IdentityRegistrar materializes the network member behind an authenticated
// identifier. Satisfied by the did service.
type IdentityRegistrar interface {
	LoadOrCreateMember(ctx context.Context, identifier string) (*did.Member, error)
	ChangeMemberIdentifier(ctx context.Context, oldIdentifier, newIdentifier string) (*did.Member, error)
}

type Service struct {
	config    config.AuthServiceConfig
	storage   *Storage
	provider  IdentityProvider
	registrar IdentityRegistrar
	clock     clock.Clock
	// sessions serializes concurrent operations on the same session token
	sessions util.KeyedMutex
}

func (s *Service) Type() framework.Type {
	return framework.Auth
}

func (s *Service) Status() framework.Status {
	if s.storage == nil || s.provider == nil || s.registrar == nil {
		return framework.Status{
			Status:  framework.StatusNotReady,
			Message: "auth service is not ready: missing dependencies",
		}
	}
	return framework.Status{Status: framework.StatusReady}
}

func (s *Service) Config() config.AuthServiceConfig {
	return s.config
}

func NewAuthService(cfg config.AuthServiceConfig, db storage.ServiceStorage, provider IdentityProvider, registrar IdentityRegistrar, clk clock.Clock) (*Service, error) {
	authStorage, err := NewAuthStorage(db)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "instantiating storage for the auth service")
	}
	if clk == nil {
		clk = clock.New()
	}
	service := Service{
		config:    cfg,
		storage:   authStorage,
		provider:  provider,
		registrar: registrar,
		clock:     clk,
	}
	if !service.Status().IsReady() {
		return nil, errors.New(service.Status().Message)
	}
	return &service, nil
}

func validateTemplate(template *MessageTemplate) error {
	if template == nil {
		return nil
	}
	return template.Validate()
}

func (s *Service) newSession(identifier string, kind Kind) Session {
	now := s.clock.Now()
	return Session{
		Token:      uuid.NewString(),
		Identifier: identifier,
		Kind:       kind,
		Status:     StatusPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.config.SessionTTL),
	}
}

// InitiateSignUp registers an unconfirmed account and opens a confirmation
// session. A confirmed account already holding the identifier is a conflict.
func (s *Service) InitiateSignUp(ctx context.Context, request InitiateSignUpRequest) (*InitiateResponse, error) {
	logrus.Debugf("initiating sign up for: %s", util.SanitizeLog(request.Identifier))

	if err := validateTemplate(request.Template); err != nil {
		return nil, err
	}
	exists, err := s.provider.AccountExists(ctx, request.Identifier)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.NewErrorf(common.IdentifierAlreadyRegistered, "an account already exists for: %s", request.Identifier)
	}
	if err = s.provider.Register(ctx, request.Identifier, request.Password); err != nil {
		return nil, err
	}
	if err = s.provider.SendCode(ctx, request.Identifier, request.Template); err != nil {
		return nil, err
	}

	session := s.newSession(request.Identifier, KindSignUp)
	session.IsNew = true
	if err = s.storage.StoreSession(ctx, session); err != nil {
		return nil, util.LoggingErrorMsg(err, "storing sign up session")
	}
	return &InitiateResponse{SessionToken: session.Token}, nil
}

// InitiateSignIn opens a confirmation session for the identifier. An unknown
// identifier is registered as a passwordless account rather than rejected, so
// initiation never leaks whether an account exists.
func (s *Service) InitiateSignIn(ctx context.Context, request InitiateSignInRequest) (*InitiateResponse, error) {
	logrus.Debugf("initiating sign in for: %s", util.SanitizeLog(request.Identifier))

	if err := validateTemplate(request.Template); err != nil {
		return nil, err
	}
	exists, err := s.provider.AccountExists(ctx, request.Identifier)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err = s.provider.Register(ctx, request.Identifier, ""); err != nil {
			return nil, err
		}
	}
	if err = s.provider.SendCode(ctx, request.Identifier, request.Template); err != nil {
		return nil, err
	}

	session := s.newSession(request.Identifier, KindSignIn)
	session.IsNew = !exists
	if err = s.storage.StoreSession(ctx, session); err != nil {
		return nil, util.LoggingErrorMsg(err, "storing sign in session")
	}
	return &InitiateResponse{SessionToken: session.Token}, nil
}

// confirmCode is the shared completion core: load the session, enforce the
// terminal states, and check the code. A wrong code increments the attempt
// count atomically; reaching the ceiling tombstones the session so later
// attempts fail without a code check. Provider outages surface unchanged and
// leave the attempt count untouched.
func (s *Service) confirmCode(ctx context.Context, token, code string, kind Kind) (*Session, error) {
	session, err := s.storage.GetSession(ctx, token)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "reading session")
	}
	if session == nil {
		return nil, common.NewError(common.SessionExpired, "no session found for the given token")
	}
	if session.Kind != kind {
		return nil, common.NewErrorf(common.MalformedToken, "session was initiated for %s, not %s", session.Kind, kind)
	}
	if session.Status == StatusExhausted {
		return nil, common.NewError(common.TooManyAttempts, "confirmation attempt limit reached, initiate a new session")
	}
	if s.clock.Now().After(session.ExpiresAt) {
		if err = s.storage.DeleteSession(ctx, token); err != nil {
			logrus.WithError(err).Warn("could not delete expired session")
		}
		return nil, common.NewError(common.SessionExpired, "session has expired, initiate a new session")
	}

	ok, err := s.provider.VerifyCode(ctx, session.codeRecipient(), code)
	if err != nil {
		// transient provider failure: no attempt is consumed
		return nil, err
	}
	if !ok {
		updated, err := s.storage.RecordFailedAttempt(ctx, token, s.config.CodeAttemptLimit)
		if err != nil {
			return nil, util.LoggingErrorMsg(err, "recording failed attempt")
		}
		if updated.Status == StatusExhausted {
			return nil, common.NewError(common.TooManyAttempts, "confirmation attempt limit reached, initiate a new session")
		}
		return nil, common.NewError(common.WrongConfirmationCode, "confirmation code does not match")
	}
	return session, nil
}

// CompleteSignUp confirms the account, materializes the member identity, and
// destroys the session.
func (s *Service) CompleteSignUp(ctx context.Context, request CompleteRequest) (*CompleteResponse, error) {
	unlock := s.sessions.Lock(request.SessionToken)
	defer unlock()

	session, err := s.confirmCode(ctx, request.SessionToken, request.Code, KindSignUp)
	if err != nil {
		return nil, err
	}
	return s.finishAuthentication(ctx, session)
}

// CompleteSignIn verifies the code and resolves the member identity. IsNew
// reports whether the identifier was first seen at initiation.
func (s *Service) CompleteSignIn(ctx context.Context, request CompleteRequest) (*CompleteResponse, error) {
	unlock := s.sessions.Lock(request.SessionToken)
	defer unlock()

	session, err := s.confirmCode(ctx, request.SessionToken, request.Code, KindSignIn)
	if err != nil {
		return nil, err
	}
	return s.finishAuthentication(ctx, session)
}

func (s *Service) finishAuthentication(ctx context.Context, session *Session) (*CompleteResponse, error) {
	if err := s.provider.ConfirmAccount(ctx, session.Identifier); err != nil {
		return nil, err
	}
	member, err := s.registrar.LoadOrCreateMember(ctx, session.Identifier)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "materializing member identity")
	}
	if err = s.storage.DeleteSession(ctx, session.Token); err != nil {
		return nil, util.LoggingErrorMsg(err, "destroying completed session")
	}
	return &CompleteResponse{
		IsNew:    session.IsNew,
		Identity: Identity{Identifier: session.Identifier, DID: member.DID},
	}, nil
}

// ResendCode re-delivers a code for a pending session. The attempt count is
// deliberately untouched: resending does not buy more attempts.
func (s *Service) ResendCode(ctx context.Context, request ResendCodeRequest) error {
	unlock := s.sessions.Lock(request.SessionToken)
	defer unlock()

	if err := validateTemplate(request.Template); err != nil {
		return err
	}
	session, err := s.storage.GetSession(ctx, request.SessionToken)
	if err != nil {
		return util.LoggingErrorMsg(err, "reading session")
	}
	if session == nil {
		return common.NewError(common.SessionExpired, "no session found for the given token")
	}
	if session.Status == StatusExhausted {
		return common.NewError(common.TooManyAttempts, "confirmation attempt limit reached, initiate a new session")
	}
	if s.clock.Now().After(session.ExpiresAt) {
		return common.NewError(common.SessionExpired, "session has expired, initiate a new session")
	}
	return s.provider.SendCode(ctx, session.codeRecipient(), request.Template)
}

// InitiateForgotPassword opens a reset session for an account that signs in
// with a password.
func (s *Service) InitiateForgotPassword(ctx context.Context, request InitiateForgotPasswordRequest) (*InitiateResponse, error) {
	logrus.Debugf("initiating password reset for: %s", util.SanitizeLog(request.Identifier))

	if err := validateTemplate(request.Template); err != nil {
		return nil, err
	}
	exists, err := s.provider.AccountExists(ctx, request.Identifier)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, util.LoggingNewErrorf("no account found for: %s", util.SanitizeLog(request.Identifier))
	}
	hasPassword, err := s.provider.HasPassword(ctx, request.Identifier)
	if err != nil {
		return nil, err
	}
	if !hasPassword {
		return nil, util.LoggingNewError("account does not use a password")
	}
	if err = s.provider.SendCode(ctx, request.Identifier, request.Template); err != nil {
		return nil, err
	}

	session := s.newSession(request.Identifier, KindForgotPassword)
	if err = s.storage.StoreSession(ctx, session); err != nil {
		return nil, util.LoggingErrorMsg(err, "storing password reset session")
	}
	return &InitiateResponse{SessionToken: session.Token}, nil
}

func (s *Service) CompleteForgotPassword(ctx context.Context, request CompleteForgotPasswordRequest) error {
	unlock := s.sessions.Lock(request.SessionToken)
	defer unlock()

	session, err := s.confirmCode(ctx, request.SessionToken, request.Code, KindForgotPassword)
	if err != nil {
		return err
	}
	if err = s.provider.SetPassword(ctx, session.Identifier, request.NewPassword); err != nil {
		return err
	}
	if err = s.storage.DeleteSession(ctx, session.Token); err != nil {
		return util.LoggingErrorMsg(err, "destroying completed session")
	}
	return nil
}

// InitiateChangeEmailOrPhone opens an identifier-change session. The code goes
// to the new identifier, proving the member controls it.
func (s *Service) InitiateChangeEmailOrPhone(ctx context.Context, request InitiateChangeEmailOrPhoneRequest) (*InitiateResponse, error) {
	logrus.Debugf("initiating identifier change for: %s", util.SanitizeLog(request.Identifier))

	if err := validateTemplate(request.Template); err != nil {
		return nil, err
	}
	exists, err := s.provider.AccountExists(ctx, request.NewIdentifier)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.NewErrorf(common.IdentifierAlreadyRegistered, "an account already exists for: %s", request.NewIdentifier)
	}
	if err = s.provider.SendCode(ctx, request.NewIdentifier, request.Template); err != nil {
		return nil, err
	}

	session := s.newSession(request.Identifier, KindChangeEmail)
	session.NewIdentifier = request.NewIdentifier
	if err = s.storage.StoreSession(ctx, session); err != nil {
		return nil, util.LoggingErrorMsg(err, "storing identifier change session")
	}
	return &InitiateResponse{SessionToken: session.Token}, nil
}

// CompleteChangeEmailOrPhone confirms the code sent to the new identifier,
// re-validates its uniqueness, and rebinds the account and member identity.
func (s *Service) CompleteChangeEmailOrPhone(ctx context.Context, request CompleteRequest) (*CompleteResponse, error) {
	unlock := s.sessions.Lock(request.SessionToken)
	defer unlock()

	session, err := s.confirmCode(ctx, request.SessionToken, request.Code, KindChangeEmail)
	if err != nil {
		return nil, err
	}

	// an account may have claimed the identifier since initiation
	exists, err := s.provider.AccountExists(ctx, session.NewIdentifier)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, common.NewErrorf(common.IdentifierAlreadyRegistered, "an account already exists for: %s", session.NewIdentifier)
	}
	if err = s.provider.ChangeIdentifier(ctx, session.Identifier, session.NewIdentifier); err != nil {
		return nil, err
	}
	member, err := s.registrar.ChangeMemberIdentifier(ctx, session.Identifier, session.NewIdentifier)
	if err != nil {
		return nil, util.LoggingErrorMsg(err, "rebinding member identity")
	}
	if err = s.storage.DeleteSession(ctx, session.Token); err != nil {
		return nil, util.LoggingErrorMsg(err, "destroying completed session")
	}
	return &CompleteResponse{
		Identity: Identity{Identifier: session.NewIdentifier, DID: member.DID},
	}, nil
}
