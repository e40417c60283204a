package cognito

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lestrrat-go/jwx/jwk"
	"github.com/lestrrat-go/jwx/jwt"
)

// IDClaims are the ID token claims the client needs.
type IDClaims struct {
	Subject string
	Email   string
	Name    string
}

// JWKSVerifier validates Cognito ID tokens against the user pool key set.
type JWKSVerifier struct {
	jwksURL  string
	issuer   string
	audience string

	mu     sync.RWMutex
	keySet jwk.Set
}

// NewJWKSVerifier creates a verifier. The key set is fetched on first use.
func NewJWKSVerifier(jwksURL, issuer, audience string) *JWKSVerifier {
	return &JWKSVerifier{
		jwksURL:  jwksURL,
		issuer:   issuer,
		audience: audience,
	}
}

// RefreshJWKSet refreshes the JWK set used for token validation
func (v *JWKSVerifier) RefreshJWKSet(ctx context.Context) error {
	set, err := jwk.Fetch(ctx, v.jwksURL)
	if err != nil {
		return fmt.Errorf("failed to refresh JWK set: %w", err)
	}
	v.mu.Lock()
	v.keySet = set
	v.mu.Unlock()
	return nil
}

func (v *JWKSVerifier) currentSet(ctx context.Context) (jwk.Set, error) {
	v.mu.RLock()
	set := v.keySet
	v.mu.RUnlock()
	if set != nil {
		return set, nil
	}
	if err := v.RefreshJWKSet(ctx); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.keySet, nil
}

func (v *JWKSVerifier) parse(set jwk.Set, idToken string) (jwt.Token, error) {
	return jwt.Parse(
		[]byte(idToken),
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
}

// Verify checks the signature and standard claims of an ID token. A failed
// check is retried once with a freshly fetched key set to follow key rotation.
func (v *JWKSVerifier) Verify(ctx context.Context, idToken string) (IDClaims, error) {
	set, err := v.currentSet(ctx)
	if err != nil {
		return IDClaims{}, err
	}

	token, err := v.parse(set, idToken)
	if err != nil {
		if refreshErr := v.RefreshJWKSet(ctx); refreshErr == nil {
			v.mu.RLock()
			set = v.keySet
			v.mu.RUnlock()
			token, err = v.parse(set, idToken)
		}
		if err != nil {
			return IDClaims{}, fmt.Errorf("invalid id token: %w", err)
		}
	}

	if use, ok := token.Get("token_use"); ok && use != "id" {
		return IDClaims{}, errors.New("invalid id token: token_use is not id")
	}

	return IDClaims{
		Subject: token.Subject(),
		Email:   stringClaim(token, "email"),
		Name:    stringClaim(token, "name"),
	}, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
