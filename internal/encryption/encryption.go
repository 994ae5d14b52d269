// Package encryption provides the symmetric encryption used for data at rest,
// notably private key material held by the keystore.
package encryption

import (
	"context"
	"crypto/rand"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

type Encrypter interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
}

type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// XChaCha20Poly1305Encrypter implements Encrypter and Decrypter with a single
// symmetric key. Ciphertexts carry their nonce as a prefix.
type XChaCha20Poly1305Encrypter struct {
	key []byte
}

func NewXChaCha20Poly1305EncrypterWithKey(key []byte) (*XChaCha20Poly1305Encrypter, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, errors.Errorf("key must be %d bytes", chacha20poly1305.KeySize)
	}
	return &XChaCha20Poly1305Encrypter{key: key}, nil
}

func (e *XChaCha20Poly1305Encrypter) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return nil, errors.Wrap(err, "creating aead")
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err = rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "generating nonce")
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (e *XChaCha20Poly1305Encrypter) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return nil, errors.Wrap(err, "creating aead")
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decrypting")
	}
	return plaintext, nil
}

// GenerateSalt returns saltSize random bytes
func GenerateSalt(saltSize int) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "generating salt")
	}
	return salt, nil
}
