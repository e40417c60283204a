package main

import (
	"context"
	"fmt"
	"path/filepath"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"go.uber.org/zap"

	"github.com/codecraftes/mottu-yard/internal/common/config"
	"github.com/codecraftes/mottu-yard/internal/common/logging"
	"github.com/codecraftes/mottu-yard/internal/common/utils"
	"github.com/codecraftes/mottu-yard/internal/domain/fleet"
	"github.com/codecraftes/mottu-yard/internal/domain/session"
	"github.com/codecraftes/mottu-yard/internal/platform/api"
	"github.com/codecraftes/mottu-yard/internal/platform/cognito"
	ddbclient "github.com/codecraftes/mottu-yard/internal/platform/dynamodb/client"
	"github.com/codecraftes/mottu-yard/internal/platform/dynamodb/repository"
	kmspkg "github.com/codecraftes/mottu-yard/internal/platform/kms"
	"github.com/codecraftes/mottu-yard/internal/platform/localstate"
	"github.com/codecraftes/mottu-yard/internal/platform/push"
	"github.com/codecraftes/mottu-yard/internal/platform/securestore"
	"github.com/codecraftes/mottu-yard/pkg/validator"
)

// app holds every service a command may need. It is built once per process.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	state   localstate.State
	session *session.Service
	fleet   *fleet.Service
}

func newApp(ctx context.Context, envFile string) (*app, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	installation, err := securestore.InstallationID(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	var sealer securestore.Sealer
	switch {
	case cfg.TokenKMSKeyID != "":
		sealer, err = kmspkg.NewSealer(kms.NewFromConfig(awsCfg), cfg.TokenKMSKeyID, installation)
	case cfg.TokenStoreSecretID != "":
		src := kmspkg.NewSecretKeySource(secretsmanager.NewFromConfig(awsCfg), cfg.TokenStoreSecretID, log)
		var passphrase string
		passphrase, err = src.Passphrase(ctx)
		if err == nil {
			sealer, err = passphraseSealer(cfg.StateDir, passphrase, installation)
		}
	default:
		sealer, err = passphraseSealer(cfg.StateDir, cfg.TokenStorePassphrase, installation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set up token sealing: %w", err)
	}

	tokens, err := securestore.NewFileStore(filepath.Join(cfg.StateDir, "secure"), sealer)
	if err != nil {
		return nil, err
	}

	state, err := localstate.NewFileState(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	backend, err := api.NewClient(api.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
		Tokens:  api.StoreTokenSource(tokens, session.BackendTokenKey),
	}, log.Named("api"))
	if err != nil {
		return nil, err
	}

	verifier := cognito.NewJWKSVerifier(
		utils.BuildJWKSURL(cfg.UserPoolID, cfg.AWSRegion),
		utils.GetTokenIssuer(cfg.UserPoolID, cfg.AWSRegion),
		cfg.UserPoolClientID,
	)
	provider := cognito.NewProvider(cognito.NewClient(awsCfg), verifier, cfg.UserPoolID, cfg.UserPoolClientID, log.Named("cognito"))

	profiles := repository.NewDynamoDBProfileRepository(ddbclient.NewDynamoDBClient(awsCfg, log), cfg.ProfileTableName, log.Named("profiles"))

	registrar := push.NewRegistrar(push.NewEnvDevice(cfg.PushDeviceToken, cfg.PushPermission), log.Named("push"))

	svc := session.NewService(session.Dependencies{
		Provider:  provider,
		Profiles:  profiles,
		Tokens:    tokens,
		Cache:     state,
		Exchanger: session.NewExchanger(backend, tokens, log.Named("exchange")),
		Push:      registrar,
		Backend:   backend,
	}, log.Named("session"))

	return &app{
		cfg:     cfg,
		log:     log,
		state:   state,
		session: svc,
		fleet:   fleet.NewService(backend, validator.New(), cfg.FleetCacheTTL, log.Named("fleet")),
	}, nil
}

// close waits for background work such as push registration and flushes logs.
func (a *app) close() {
	a.session.Wait()
	_ = a.log.Sync()
}

func passphraseSealer(stateDir, passphrase, installation string) (securestore.Sealer, error) {
	salt, err := securestore.KeySalt(stateDir)
	if err != nil {
		return nil, err
	}
	return securestore.NewChaChaSealer(passphrase, salt, installation)
}
