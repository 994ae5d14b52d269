// Package provider is the HTTP client for the managed identity provider: the
// external account system that owns registration, passwords, and
// confirmation-code generation and delivery.
package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/affinity-network/exchange-service/config"
	"github.com/affinity-network/exchange-service/internal/util"
	"github.com/affinity-network/exchange-service/pkg/service/auth"
	"github.com/affinity-network/exchange-service/pkg/service/common"
)

const (
	accountExistsPath    = "/account/exists"
	registerPath         = "/account/register"
	confirmPath          = "/account/confirm"
	hasPasswordPath      = "/account/has-password"
	setPasswordPath      = "/account/set-password"
	changeIdentifierPath = "/account/change-identifier"
	sendCodePath         = "/code/send"
	verifyCodePath       = "/code/verify"

	apiKeyHeader = "Api-Key"

	maxRetries = 3
)

// Client implements auth.IdentityProvider against the provider API. Transient
// failures are retried with backoff and then surfaced as
// common.CapabilityUnavailable, so they never consume confirmation attempts.
type Client struct {
	http   *http.Client
	url    string
	apiKey string
}

func NewClient(cfg config.ProviderServiceConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("provider url is required")
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		url:    cfg.URL,
		apiKey: cfg.APIKey,
	}, nil
}

type identifierRequest struct {
	Identifier string `json:"identifier"`
}

type existsResponse struct {
	Exists bool `json:"exists"`
}

func (c *Client) AccountExists(ctx context.Context, identifier string) (bool, error) {
	var resp existsResponse
	if err := c.post(ctx, accountExistsPath, identifierRequest{Identifier: identifier}, &resp); err != nil {
		return false, errors.Wrap(err, "checking account existence")
	}
	return resp.Exists, nil
}

type registerRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password,omitempty"`
}

func (c *Client) Register(ctx context.Context, identifier, password string) error {
	if err := c.post(ctx, registerPath, registerRequest{Identifier: identifier, Password: password}, nil); err != nil {
		return errors.Wrap(err, "registering account")
	}
	return nil
}

func (c *Client) ConfirmAccount(ctx context.Context, identifier string) error {
	if err := c.post(ctx, confirmPath, identifierRequest{Identifier: identifier}, nil); err != nil {
		return errors.Wrap(err, "confirming account")
	}
	return nil
}

type sendCodeRequest struct {
	Identifier string                `json:"identifier"`
	Template   *auth.MessageTemplate `json:"messageTemplate,omitempty"`
}

func (c *Client) SendCode(ctx context.Context, identifier string, template *auth.MessageTemplate) error {
	if err := c.post(ctx, sendCodePath, sendCodeRequest{Identifier: identifier, Template: template}, nil); err != nil {
		return errors.Wrap(err, "sending confirmation code")
	}
	return nil
}

type verifyCodeRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type verifyCodeResponse struct {
	Valid bool `json:"valid"`
}

func (c *Client) VerifyCode(ctx context.Context, identifier, code string) (bool, error) {
	var resp verifyCodeResponse
	if err := c.post(ctx, verifyCodePath, verifyCodeRequest{Identifier: identifier, Code: code}, &resp); err != nil {
		return false, errors.Wrap(err, "verifying confirmation code")
	}
	return resp.Valid, nil
}

type hasPasswordResponse struct {
	HasPassword bool `json:"hasPassword"`
}

func (c *Client) HasPassword(ctx context.Context, identifier string) (bool, error) {
	var resp hasPasswordResponse
	if err := c.post(ctx, hasPasswordPath, identifierRequest{Identifier: identifier}, &resp); err != nil {
		return false, errors.Wrap(err, "checking for a password")
	}
	return resp.HasPassword, nil
}

type setPasswordRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (c *Client) SetPassword(ctx context.Context, identifier, password string) error {
	if err := c.post(ctx, setPasswordPath, setPasswordRequest{Identifier: identifier, Password: password}, nil); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return nil
}

type changeIdentifierRequest struct {
	Identifier    string `json:"identifier"`
	NewIdentifier string `json:"newIdentifier"`
}

func (c *Client) ChangeIdentifier(ctx context.Context, oldIdentifier, newIdentifier string) error {
	if err := c.post(ctx, changeIdentifierPath, changeIdentifierRequest{Identifier: oldIdentifier, NewIdentifier: newIdentifier}, nil); err != nil {
		return errors.Wrap(err, "changing identifier")
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	requestBytes, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "marshalling request")
	}

	var responseBytes []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+path, bytes.NewReader(requestBytes))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(apiKeyHeader, c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		responseBytes, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if !util.Is2xxResponse(resp.StatusCode) {
			respErr := errors.Errorf("provider returned status %d for %s: %s", resp.StatusCode, path, util.SanitizeLog(string(responseBytes)))
			if resp.StatusCode >= http.StatusInternalServerError {
				return respErr
			}
			return backoff.Permanent(respErr)
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err = backoff.Retry(operation, policy); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		logrus.WithError(err).Errorf("identity provider unreachable for %s", path)
		return common.WrapError(common.CapabilityUnavailable, err, "identity provider unavailable")
	}

	if out != nil {
		if err = json.Unmarshal(responseBytes, out); err != nil {
			return errors.Wrap(err, "unmarshalling response")
		}
	}
	return nil
}
