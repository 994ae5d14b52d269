package did

import (
	didint "github.com/affinity-network/exchange-service/internal/did"
)

// StoredDID is a network member DID under this service's control
type StoredDID struct {
	DID       string          `json:"did"`
	Method    didint.Method   `json:"method"`
	Document  didint.Document `json:"document"`
	CreatedAt string          `json:"createdAt"`
}

// Member binds an authenticated identifier (email/phone/username) to its DID
type Member struct {
	Identifier string `json:"identifier"`
	DID        string `json:"did"`
	CreatedAt  string `json:"createdAt"`
}

type CreateDIDRequest struct {
	Method didint.Method `json:"method" validate:"required"`
}

type CreateDIDResponse struct {
	DID      string          `json:"did"`
	Document didint.Document `json:"document"`
}

type GetDIDRequest struct {
	DID string `json:"did" validate:"required"`
}

type GetDIDResponse struct {
	DID      string          `json:"did"`
	Document didint.Document `json:"document"`
}

type ListDIDsResponse struct {
	DIDs []StoredDID `json:"dids"`
}

type ResolveDIDRequest struct {
	DID string `json:"did" validate:"required"`
}

type ResolveDIDResponse struct {
	Document didint.Document `json:"didDocument"`
}
