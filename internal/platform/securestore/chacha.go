package securestore

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters for deriving the sealing key from a passphrase.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4

	// MinSaltLength is the shortest salt NewChaChaSealer accepts.
	MinSaltLength = 16
)

// ChaChaSealer seals values with XChaCha20-Poly1305. The key is derived from
// a passphrase and a per-installation salt with Argon2id. The nonce is
// prepended to the ciphertext.
type ChaChaSealer struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
	ad []byte
}

// NewChaChaSealer derives the key from passphrase and salt. associated is
// bound to every ciphertext and must match on Open; pass the installation id.
func NewChaChaSealer(passphrase string, salt []byte, associated string) (*ChaChaSealer, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if len(salt) < MinSaltLength {
		return nil, fmt.Errorf("salt must be at least %d bytes", MinSaltLength)
	}
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create xchacha20: %w", err)
	}
	return &ChaChaSealer{aead: aead, ad: []byte(associated)}, nil
}

func (s *ChaChaSealer) Seal(_ context.Context, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, s.ad), nil
}

func (s *ChaChaSealer) Open(_ context.Context, ciphertext []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(ciphertext) < n {
		return nil, errors.New("ciphertext too short")
	}
	plain, err := s.aead.Open(nil, ciphertext[:n], ciphertext[n:], s.ad)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}
