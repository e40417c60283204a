// Package cognito adapts an AWS Cognito user pool to the session package's
// IdentityProvider.
package cognito

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	apperrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
	"github.com/codecraftes/mottu-yard/internal/domain/session"
)

// Cognito attribute names.
const (
	attrEmail   = "email"
	attrName    = "name"
	attrPicture = "picture"
)

// TokenVerifier validates ID tokens returned by InitiateAuth.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (IDClaims, error)
}

// Provider implements session.IdentityProvider. The signed-in session lives
// only in memory.
type Provider struct {
	client     API
	verifier   TokenVerifier
	userPoolID string
	clientID   string
	log        *zap.Logger

	mu      sync.RWMutex
	current *session.FederatedSession
}

// NewProvider creates a new Cognito identity provider
func NewProvider(client API, verifier TokenVerifier, userPoolID, clientID string, log *zap.Logger) *Provider {
	return &Provider{
		client:     client,
		verifier:   verifier,
		userPoolID: userPoolID,
		clientID:   clientID,
		log:        log,
	}
}

// providerError keeps the service message verbatim in Message.
func providerError(op string, err error) error {
	msg := err.Error()
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorMessage() != "" {
		msg = apiErr.ErrorMessage()
	}
	return apperrors.AppError{
		Code:       apperrors.CodeIdentityProvider,
		Message:    msg,
		StatusCode: http.StatusBadGateway,
		Err:        fmt.Errorf("%s: %w", op, err),
	}
}

// CreateIdentity signs up a user with email as the username and confirms it
// so it can sign in immediately.
func (p *Provider) CreateIdentity(ctx context.Context, email, password string) (session.Identity, error) {
	result, err := p.client.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(email),
		Password: aws.String(password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String(attrEmail), Value: aws.String(email)},
		},
	})
	if err != nil {
		return "", providerError("sign up", err)
	}
	id := session.Identity(aws.ToString(result.UserSub))

	if !result.UserConfirmed {
		if _, err := p.client.AdminConfirmSignUp(ctx, &cognitoidentityprovider.AdminConfirmSignUpInput{
			UserPoolId: aws.String(p.userPoolID),
			Username:   aws.String(email),
		}); err != nil {
			if derr := p.DeleteIdentity(ctx, id); derr != nil {
				p.log.Error("Failed to delete unconfirmed user", zap.String("identity", string(id)), zap.Error(derr))
			}
			return "", providerError("confirm sign up", err)
		}
	}

	p.log.Debug("Cognito user created", zap.String("identity", string(id)))
	return id, nil
}

// SetDisplayName sets the name attribute.
func (p *Provider) SetDisplayName(ctx context.Context, id session.Identity, displayName string) error {
	return p.updateAttributes(ctx, id, []types.AttributeType{
		{Name: aws.String(attrName), Value: aws.String(displayName)},
	})
}

// DeleteIdentity removes the user from the pool.
func (p *Provider) DeleteIdentity(ctx context.Context, id session.Identity) error {
	_, err := p.client.AdminDeleteUser(ctx, &cognitoidentityprovider.AdminDeleteUserInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(string(id)),
	})
	if err != nil {
		return providerError("delete user", err)
	}

	p.mu.Lock()
	if p.current != nil && p.current.Identity == id {
		p.current = nil
	}
	p.mu.Unlock()
	return nil
}

// SignIn authenticates with USER_PASSWORD_AUTH and verifies the returned ID token.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*session.FederatedSession, error) {
	out, err := p.client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(p.clientID),
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, providerError("sign in", err)
	}

	if out.ChallengeName != "" {
		return nil, apperrors.AppError{
			Code:       apperrors.CodeIdentityProvider,
			Message:    fmt.Sprintf("unsupported authentication challenge %s", out.ChallengeName),
			StatusCode: http.StatusBadGateway,
		}
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.IdToken == nil {
		return nil, apperrors.AppError{
			Code:       apperrors.CodeIdentityProvider,
			Message:    "identity provider returned no tokens",
			StatusCode: http.StatusBadGateway,
		}
	}

	res := out.AuthenticationResult
	claims, err := p.verifier.Verify(ctx, aws.ToString(res.IdToken))
	if err != nil {
		return nil, providerError("verify id token", err)
	}

	fed := &session.FederatedSession{
		Identity:     session.Identity(claims.Subject),
		Email:        claims.Email,
		DisplayName:  claims.Name,
		IDToken:      aws.ToString(res.IdToken),
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
	}
	if fed.Email == "" {
		fed.Email = email
	}

	p.mu.Lock()
	p.current = fed
	p.mu.Unlock()
	return fed, nil
}

// SignOut revokes the session's tokens. The in-memory session is dropped
// whether or not the revocation succeeds.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	fed := p.current
	p.current = nil
	p.mu.Unlock()

	if fed == nil || fed.AccessToken == "" {
		return nil
	}

	if _, err := p.client.GlobalSignOut(ctx, &cognitoidentityprovider.GlobalSignOutInput{
		AccessToken: aws.String(fed.AccessToken),
	}); err != nil {
		return providerError("sign out", err)
	}
	return nil
}

// CurrentSession returns the signed-in session, if any.
func (p *Provider) CurrentSession() (*session.FederatedSession, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.current != nil
}

// UpdateProfile maps DisplayName to name and PhotoURL to picture.
func (p *Provider) UpdateProfile(ctx context.Context, id session.Identity, update session.ProfileUpdate) error {
	var attributes []types.AttributeType
	if update.DisplayName != nil {
		attributes = append(attributes, types.AttributeType{
			Name: aws.String(attrName), Value: update.DisplayName,
		})
	}
	if update.PhotoURL != nil {
		attributes = append(attributes, types.AttributeType{
			Name: aws.String(attrPicture), Value: update.PhotoURL,
		})
	}
	if len(attributes) == 0 {
		return nil
	}
	if err := p.updateAttributes(ctx, id, attributes); err != nil {
		return err
	}

	if update.DisplayName != nil {
		p.mu.Lock()
		if p.current != nil && p.current.Identity == id {
			p.current.DisplayName = *update.DisplayName
		}
		p.mu.Unlock()
	}
	return nil
}

// ChangePassword sets a permanent password for the user.
func (p *Provider) ChangePassword(ctx context.Context, id session.Identity, newPassword string) error {
	_, err := p.client.AdminSetUserPassword(ctx, &cognitoidentityprovider.AdminSetUserPasswordInput{
		UserPoolId: aws.String(p.userPoolID),
		Username:   aws.String(string(id)),
		Password:   aws.String(newPassword),
		Permanent:  true,
	})
	if err != nil {
		return providerError("change password", err)
	}
	return nil
}

func (p *Provider) updateAttributes(ctx context.Context, id session.Identity, attributes []types.AttributeType) error {
	_, err := p.client.AdminUpdateUserAttributes(ctx, &cognitoidentityprovider.AdminUpdateUserAttributesInput{
		UserPoolId:     aws.String(p.userPoolID),
		Username:       aws.String(string(id)),
		UserAttributes: attributes,
	})
	if err != nil {
		return providerError("update user attributes", err)
	}
	return nil
}
