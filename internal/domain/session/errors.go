package session

import (
	"errors"

	apperrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
)

// BackendTokenKey is the secure store key of the backend session token.
const BackendTokenKey = "backend_token"

// MinPasswordLength is the shortest password the identity provider accepts.
const MinPasswordLength = 6

// Backend endpoints used by the session flow.
const (
	ExchangePath     = "/firebase-login"
	PushRegisterPath = "/api/push/register"
)

// Sentinels for errors.Is. Matching is by error code.
var (
	ErrIdentityProvider            = apperrors.AppError{Code: apperrors.CodeIdentityProvider}
	ErrBackendAuthenticationFailed = apperrors.AppError{Code: apperrors.CodeBackendAuthenticationFailed}
	ErrProfileNotFound             = apperrors.AppError{Code: apperrors.CodeProfileNotFound}
	ErrInvalidPassword             = apperrors.AppError{Code: apperrors.CodeInvalidPassword}
	ErrStorageUnavailable          = apperrors.AppError{Code: apperrors.CodeStorageUnavailable}
)

// providerError wraps provider failures, leaving errors that already carry a code alone.
func providerError(err error) error {
	var appErr apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.NewIdentityProviderError(err)
}
