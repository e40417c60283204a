// Package kms provides AWS-backed key material for the secure token store:
// a KMS envelope sealer and a Secrets Manager passphrase source.
package kms

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// API is the subset of the KMS client used by Sealer.
type API interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// encryptionContextKey names the installation id in the KMS encryption context.
const encryptionContextKey = "installation"

// Sealer encrypts values directly with a KMS key. Secrets kept by the client
// are far below the 4 KiB KMS plaintext limit.
type Sealer struct {
	client       API
	keyID        string
	installation string
}

// NewSealer creates a Sealer bound to keyID and the local installation id.
func NewSealer(client API, keyID, installation string) (*Sealer, error) {
	if keyID == "" {
		return nil, errors.New("kms key id is required")
	}
	if installation == "" {
		return nil, errors.New("installation id is required")
	}
	return &Sealer{client: client, keyID: keyID, installation: installation}, nil
}

func (s *Sealer) encryptionContext() map[string]string {
	return map[string]string{encryptionContextKey: s.installation}
}

// Seal encrypts plaintext with the configured key.
func (s *Sealer) Seal(ctx context.Context, plaintext []byte) ([]byte, error) {
	out, err := s.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(s.keyID),
		Plaintext:         plaintext,
		EncryptionContext: s.encryptionContext(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt with kms: %w", err)
	}
	return out.CiphertextBlob, nil
}

// Open decrypts a ciphertext produced by Seal on this installation.
func (s *Sealer) Open(ctx context.Context, ciphertext []byte) ([]byte, error) {
	out, err := s.client.Decrypt(ctx, &kms.DecryptInput{
		KeyId:             aws.String(s.keyID),
		CiphertextBlob:    ciphertext,
		EncryptionContext: s.encryptionContext(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt with kms: %w", err)
	}
	return out.Plaintext, nil
}
