package codec

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// AEAD encrypts payloads with XChaCha20-Poly1305. Each Encode call draws a
// fresh random nonce which is prepended to the ciphertext.
type AEAD struct {
	aead cipher.AEAD
}

// NewAEAD creates an AEAD codec from a 32-byte key.
func NewAEAD(key []byte) (*AEAD, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("codec: aead key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("codec: creating aead cipher: %w", err)
	}
	return &AEAD{aead: aead}, nil
}

// Encode encrypts data.
func (a *AEAD) Encode(data []byte) ([]byte, error) {
	nonce := make([]byte, a.aead.NonceSize(), a.aead.NonceSize()+len(data)+a.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("codec: generating nonce: %w", err)
	}
	return a.aead.Seal(nonce, nonce, data, nil), nil
}

// Decode authenticates and decrypts data.
func (a *AEAD) Decode(data []byte) ([]byte, error) {
	if len(data) < a.aead.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext shorter than nonce", ErrCorrupt)
	}
	nonce, ciphertext := data[:a.aead.NonceSize()], data[a.aead.NonceSize():]
	out, err := a.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

// Name returns the stable codec name.
func (a *AEAD) Name() string { return "aead" }
