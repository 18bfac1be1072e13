// Package crypto seals small payloads, such as cart cookies, with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
)

var (
	ErrMissingKey   = errors.New("encryption key is required")
	ErrInvalidKey   = errors.New("encryption key must be 32 bytes for AES-256")
	ErrInvalidToken = errors.New("sealed value is malformed or was tampered with")
)

// Sealer encrypts and authenticates payloads. The context string is bound
// into the ciphertext, so a value sealed for one purpose cannot be opened
// for another.
type Sealer interface {
	Seal(plaintext []byte, context string) (string, error)
	Open(sealed string, context string) ([]byte, error)
}

type aesGCMSealer struct {
	aead cipher.AEAD
}

func NewSealer(key string) (Sealer, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &aesGCMSealer{aead: aead}, nil
}

func (s *aesGCMSealer) Seal(plaintext []byte, context string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := s.aead.Seal(nonce, nonce, plaintext, []byte(context))
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *aesGCMSealer) Open(sealed string, context string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, ErrInvalidToken
	}

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize+s.aead.Overhead() {
		return nil, ErrInvalidToken
	}

	plaintext, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(context))
	if err != nil {
		return nil, ErrInvalidToken
	}
	return plaintext, nil
}
