package session

import (
	"context"

	"go.uber.org/zap"
)

type exchangeRequest struct {
	FirebaseToken string `json:"firebaseToken"`
}

type exchangeResponse struct {
	Token string `json:"token"`
}

// Exchanger trades a federated identity token for a backend session token
// and keeps the secure store consistent with the outcome.
type Exchanger struct {
	backend BackendAPI
	tokens  TokenStore
	log     *zap.Logger
}

// NewExchanger creates a new Exchanger
func NewExchanger(backend BackendAPI, tokens TokenStore, log *zap.Logger) *Exchanger {
	return &Exchanger{
		backend: backend,
		tokens:  tokens,
		log:     log,
	}
}

// ExchangeToken posts the credential to the exchange endpoint and stores the
// returned token. Every failure path deletes the stored token before
// returning false, whether or not one existed.
func (e *Exchanger) ExchangeToken(ctx context.Context, federatedCredential string) bool {
	var resp exchangeResponse
	err := e.backend.PostJSON(ctx, ExchangePath, exchangeRequest{FirebaseToken: federatedCredential}, &resp)

	switch {
	case err != nil:
		e.log.Error("Token exchange failed", zap.Error(err))
	case resp.Token == "":
		e.log.Error("Backend returned no session token")
	default:
		if err := e.tokens.Set(ctx, BackendTokenKey, resp.Token); err != nil {
			e.log.Error("Failed to store backend session token", zap.Error(err))
			break
		}
		e.log.Info("Backend session token stored")
		return true
	}

	if err := e.tokens.Delete(ctx, BackendTokenKey); err != nil {
		e.log.Error("Failed to clear backend session token", zap.Error(err))
	}
	return false
}
