package kms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-secretsmanager-caching-go/v2/secretcache"
	"go.uber.org/zap"
)

type secretGetter interface {
	GetSecretString(secretID string) (string, error)
}

// SecretsAPI is the subset of the Secrets Manager client used when the
// cache is unavailable.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretKeySource reads the token store passphrase from Secrets Manager.
// The secret is either the passphrase itself or a JSON object with a
// "passphrase" field.
type SecretKeySource struct {
	cache    secretGetter
	client   SecretsAPI
	secretID string
}

// NewSecretKeySource creates a source backed by the secrets manager cache.
// If the cache cannot be created the client is called directly.
func NewSecretKeySource(client *secretsmanager.Client, secretID string, log *zap.Logger) *SecretKeySource {
	src := &SecretKeySource{client: client, secretID: secretID}

	cache, err := secretcache.New(func(c *secretcache.Cache) {
		c.Client = client
	})
	if err != nil {
		log.Warn("Failed to initialize secret cache, falling back to direct calls", zap.Error(err))
		return src
	}
	src.cache = cache
	return src
}

// Passphrase returns the current passphrase.
func (s *SecretKeySource) Passphrase(ctx context.Context) (string, error) {
	var raw string
	var err error

	if s.cache != nil {
		raw, err = s.cache.GetSecretString(s.secretID)
	} else {
		var out *secretsmanager.GetSecretValueOutput
		out, err = s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
			SecretId: aws.String(s.secretID),
		})
		if err == nil {
			raw = aws.ToString(out.SecretString)
		}
	}
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return "", fmt.Errorf("token store secret %q does not exist", s.secretID)
		}
		return "", fmt.Errorf("failed to read token store secret: %w", err)
	}

	return parsePassphrase(raw)
}

func parsePassphrase(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "{") {
		var doc struct {
			Passphrase string `json:"passphrase"`
		}
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return "", fmt.Errorf("failed to parse token store secret: %w", err)
		}
		raw = doc.Passphrase
	}
	if raw == "" {
		return "", errors.New("token store secret is empty")
	}
	return raw, nil
}
