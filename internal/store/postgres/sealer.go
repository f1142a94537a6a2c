package postgres

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

var ErrSealKey = errors.New("credential sealing key must be 32 bytes of hex")

// Sealer encrypts provider credentials at rest with XChaCha20-Poly1305. The
// random nonce is stored in front of the ciphertext.
type Sealer struct {
	key []byte
}

func NewSealer(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil || len(key) != chacha20poly1305.KeySize {
		return nil, ErrSealKey
	}
	return &Sealer{key: key}, nil
}

func (s *Sealer) Seal(plaintext []byte, userID int64) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, additionalData(userID)), nil
}

func (s *Sealer) Open(sealed []byte, userID int64) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed credential too short")
	}
	nonce, ct := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, additionalData(userID))
}

// Binding the owner into the tag stops a sealed blob being moved to another
// user's row.
func additionalData(userID int64) []byte {
	return []byte(fmt.Sprintf("credential:%d", userID))
}
