// Package registry is the HTTP client for the DID registry: the external
// service that stores DID documents in content-addressed storage and anchors
// them on chain.
package registry

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
	didint "github.com/affinity-network/exchange-service/internal/did"
	"github.com/affinity-network/exchange-service/internal/util"
	"github.com/affinity-network/exchange-service/pkg/service/common"
)

const (
	putDocumentPath       = "/did/put-in-ipfs"
	anchorTransactionPath = "/did/anchor-transaction"
	transactionCountPath  = "/did/transaction-count"
	anchorDIDPath         = "/did/anchor-did"
	resolveDIDPath        = "/did/resolve-did"

	apiKeyHeader = "Api-Key"

	// how often a request is retried on transient failure before surfacing
	// CapabilityUnavailable
	maxRetries = 3
)

// Client talks to the affinity registry API. All methods honor the caller's
// context; transient failures are retried with backoff and then surfaced as
// common.CapabilityUnavailable, never as a protocol-level rejection.
type Client struct {
	http   *http.Client
	url    string
	apiKey string
}

func NewClient(cfg config.RegistryServiceConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("registry url is required")
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		url:    cfg.URL,
		apiKey: cfg.APIKey,
	}, nil
}

type putDocumentRequest struct {
	Document any `json:"document"`
}

type putDocumentResponse struct {
	Hash string `json:"hash"`
}

// PutDocument stores a signed DID document in content-addressed storage and
// returns the address that links to it.
func (c *Client) PutDocument(ctx context.Context, document any) (string, error) {
	var resp putDocumentResponse
	if err := c.post(ctx, putDocumentPath, putDocumentRequest{Document: document}, &resp, false); err != nil {
		return "", errors.Wrap(err, "putting document")
	}
	return resp.Hash, nil
}

type anchorTransactionRequest struct {
	DID                string `json:"did"`
	Nonce              int64  `json:"nonce"`
	DIDDocumentAddress string `json:"didDocumentAddress"`
}

type anchorTransactionResponse struct {
	DigestHex string `json:"digestHex"`
}

// CreateAnchorTransaction prepares the anchoring transaction for the chain and
// returns its digest for the caller to sign.
func (c *Client) CreateAnchorTransaction(ctx context.Context, did string, nonce int64, documentAddress string) (string, error) {
	var resp anchorTransactionResponse
	req := anchorTransactionRequest{DID: did, Nonce: nonce, DIDDocumentAddress: documentAddress}
	if err := c.post(ctx, anchorTransactionPath, req, &resp, false); err != nil {
		return "", errors.Wrap(err, "creating anchor transaction")
	}
	return resp.DigestHex, nil
}

type transactionCountRequest struct {
	EthereumPublicKeyHex string `json:"ethereumPublicKeyHex"`
}

type transactionCountResponse struct {
	TransactionCount int64 `json:"transactionCount"`
}

// TransactionCount returns the chain transaction count for the service wallet,
// used as the anchoring nonce.
func (c *Client) TransactionCount(ctx context.Context, ethereumPublicKeyHex string) (int64, error) {
	var resp transactionCountResponse
	if err := c.post(ctx, transactionCountPath, transactionCountRequest{EthereumPublicKeyHex: ethereumPublicKeyHex}, &resp, false); err != nil {
		return 0, errors.Wrap(err, "getting transaction count")
	}
	return resp.TransactionCount, nil
}

// AnchorDIDRequest holds the inputs to anchor a published document on chain
type AnchorDIDRequest struct {
	DID                  string `json:"did"`
	DIDDocumentAddress   string `json:"didDocumentAddress"`
	Nonce                int64  `json:"nonce,omitempty"`
	EthereumPublicKeyHex string `json:"ethereumPublicKeyHex"`
	TransactionSignature any    `json:"transactionSignatureJson"`
}

type anchorDIDResponse struct {
	DID string `json:"did"`
}

// AnchorDID anchors a stored DID document on chain. Api-Key gated.
func (c *Client) AnchorDID(ctx context.Context, request AnchorDIDRequest) (string, error) {
	var resp anchorDIDResponse
	if err := c.post(ctx, anchorDIDPath, request, &resp, true); err != nil {
		return "", errors.Wrap(err, "anchoring did")
	}
	return resp.DID, nil
}

type resolveDIDRequest struct {
	DID string `json:"did"`
}

type resolveDIDResponse struct {
	DIDDocument didint.Document `json:"didDocument"`
}

// Resolve implements did.Resolver against the registry. An unknown DID is a
// typed UnknownSigner failure; an unreachable registry is CapabilityUnavailable.
func (c *Client) Resolve(ctx context.Context, did string) (*didint.Document, error) {
	var resp resolveDIDResponse
	if err := c.post(ctx, resolveDIDPath, resolveDIDRequest{DID: did}, &resp, false); err != nil {
		if common.IsCode(err, common.CapabilityUnavailable) {
			return nil, err
		}
		return nil, common.WrapError(common.UnknownSigner, err, "could not resolve did: "+did)
	}
	if resp.DIDDocument.ID == "" {
		return nil, common.NewErrorf(common.UnknownSigner, "registry returned empty document for did: %s", did)
	}
	return &resp.DIDDocument, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any, authenticated bool) error {
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
		if authenticated {
			req.Header.Set(apiKeyHeader, c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// network errors are retryable
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		responseBytes, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if !util.Is2xxResponse(resp.StatusCode) {
			respErr := errors.Errorf("registry returned status %d for %s: %s", resp.StatusCode, path, util.SanitizeLog(string(responseBytes)))
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
		logrus.WithError(err).Errorf("registry unreachable for %s", path)
		return common.WrapError(common.CapabilityUnavailable, err, "registry unavailable")
	}

	if out != nil {
		if err = json.Unmarshal(responseBytes, out); err != nil {
			return errors.Wrap(err, "unmarshalling response")
		}
	}
	return nil
}
