package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config represents the application configuration
// This struct contains all configuration parameters for the client
type Config struct {
	// AWS-specific configuration
	AWSRegion        string
	ProfileTableName string
	UserPoolID       string
	UserPoolClientID string

	// Environment and region info
	Environment string
	Region      string

	// Backend API
	APIBaseURL string
	APITimeout time.Duration

	// Local device state
	StateDir string

	// Secure token store sealing. KMS wins over the passphrase sources when set.
	TokenKMSKeyID        string
	TokenStoreSecretID   string
	TokenStorePassphrase string

	// Push notifications
	PushDeviceToken string
	PushPermission  string

	FleetCacheTTL time.Duration
}

// LoadFromEnv loads the configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{}

	// Required environment variables
	cfg.APIBaseURL = os.Getenv("API_BASE_URL")
	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL environment variable is required")
	}

	cfg.UserPoolID = os.Getenv("USER_POOL_ID")
	if cfg.UserPoolID == "" {
		return nil, errors.New("USER_POOL_ID environment variable is required")
	}

	cfg.UserPoolClientID = os.Getenv("USER_POOL_CLIENT_ID")
	if cfg.UserPoolClientID == "" {
		return nil, errors.New("USER_POOL_CLIENT_ID environment variable is required")
	}

	cfg.ProfileTableName = os.Getenv("PROFILE_TABLE_NAME")
	if cfg.ProfileTableName == "" {
		return nil, errors.New("PROFILE_TABLE_NAME environment variable is required")
	}

	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "dev"
	}

	cfg.Region = os.Getenv("REGION")
	if cfg.Region == "" {
		cfg.Region = "br"
	}

	cfg.AWSRegion = os.Getenv("AWS_REGION")
	if cfg.AWSRegion == "" {
		switch cfg.Region {
		case "us":
			cfg.AWSRegion = "us-east-1"
		case "eu":
			cfg.AWSRegion = "eu-west-1"
		case "br":
			cfg.AWSRegion = "sa-east-1"
		default:
			cfg.AWSRegion = "sa-east-1"
		}
	}

	var err error
	cfg.APITimeout, err = durationFromEnv("API_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.FleetCacheTTL, err = durationFromEnv("FLEET_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.StateDir = os.Getenv("STATE_DIR")
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("STATE_DIR is not set and the home directory is unknown: %w", err)
		}
		cfg.StateDir = filepath.Join(home, ".mottu")
	}

	cfg.TokenKMSKeyID = os.Getenv("TOKEN_KMS_KEY_ID")
	cfg.TokenStoreSecretID = os.Getenv("TOKEN_STORE_SECRET_ID")
	cfg.TokenStorePassphrase = os.Getenv("TOKEN_STORE_PASSPHRASE")
	if cfg.TokenKMSKeyID == "" && cfg.TokenStoreSecretID == "" && cfg.TokenStorePassphrase == "" {
		return nil, errors.New("one of TOKEN_KMS_KEY_ID, TOKEN_STORE_SECRET_ID or TOKEN_STORE_PASSPHRASE is required")
	}
	if cfg.IsProd() && cfg.TokenKMSKeyID == "" && cfg.TokenStoreSecretID == "" {
		return nil, errors.New("production requires TOKEN_KMS_KEY_ID or TOKEN_STORE_SECRET_ID; TOKEN_STORE_PASSPHRASE is for development only")
	}

	cfg.PushDeviceToken = os.Getenv("PUSH_DEVICE_TOKEN")
	cfg.PushPermission = os.Getenv("PUSH_PERMISSION")
	if cfg.PushPermission == "" {
		cfg.PushPermission = "granted"
	}

	return cfg, nil
}

// IsProd returns true for the production environment
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}

// IsDev returns true for the development environment
func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
