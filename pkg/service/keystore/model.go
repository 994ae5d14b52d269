package keystore

import "crypto/ed25519"

// StoredKey is the serialized, encrypted-at-rest form of a signing key
type StoredKey struct {
	ID         string `json:"id"`
	Controller string `json:"controller"`
	// private key bytes, encrypted with the service key, base58 encoded
	Base58Key string `json:"key"`
	CreatedAt string `json:"createdAt"`
	Revoked   bool   `json:"revoked"`
	RevokedAt string `json:"revokedAt,omitempty"`
}

type StoreKeyRequest struct {
	ID         string
	Controller string
	PrivateKey ed25519.PrivateKey
}

type GenerateKeyRequest struct {
	ID         string
	Controller string
}

type GenerateKeyResponse struct {
	ID        string
	PublicKey ed25519.PublicKey
}

type GetKeyRequest struct {
	ID string
}

type GetKeyResponse struct {
	ID         string
	Controller string
	Key        ed25519.PrivateKey
	CreatedAt  string
	Revoked    bool
	RevokedAt  string
}

type RevokeKeyRequest struct {
	ID string
}
