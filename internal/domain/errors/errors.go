package errors

import (
	"fmt"
	"net/http"
)

// Error codes shared by every layer of the client.
const (
	CodeValidation                  = "VALIDATION_ERROR"
	CodeAuthentication              = "AUTHENTICATION_ERROR"
	CodeNotFound                    = "NOT_FOUND"
	CodeConflict                    = "CONFLICT"
	CodeInternal                    = "INTERNAL_ERROR"
	CodeIdentityProvider            = "IDENTITY_PROVIDER_ERROR"
	CodeBackendAuthenticationFailed = "BACKEND_AUTHENTICATION_FAILED"
	CodeProfileNotFound             = "PROFILE_NOT_FOUND"
	CodeInvalidPassword             = "INVALID_PASSWORD"
	CodeStorageUnavailable          = "STORAGE_UNAVAILABLE"
)

// AppError is a custom error type for application errors
type AppError struct {
	Code       string
	Message    string
	StatusCode int // Same rule as HTTP status codes
	Err        error
}

// Error returns a string representation of the error
func (e AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an AppError with the same code.
func (e AppError) Is(target error) bool {
	if target, ok := target.(AppError); ok {
		return target.Code == e.Code
	}
	return false
}

// Unwrap returns the underlying error
func (e AppError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new validation error
func NewValidationError(message string) AppError {
	return AppError{
		Code:       CodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewAuthenticationError creates a new authentication error
func NewAuthenticationError(message string) AppError {
	return AppError{
		Code:       CodeAuthentication,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) AppError {
	return AppError{
		Code:       CodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) AppError {
	return AppError{
		Code:       CodeConflict,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) AppError {
	return AppError{
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewIdentityProviderError wraps a failure reported by the identity provider.
// The provider's message is kept verbatim so callers can show or match it.
func NewIdentityProviderError(err error) AppError {
	return AppError{
		Code:       CodeIdentityProvider,
		Message:    err.Error(),
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// NewBackendAuthenticationFailedError reports a token exchange that produced no session token.
func NewBackendAuthenticationFailedError(message string) AppError {
	return AppError{
		Code:       CodeBackendAuthenticationFailed,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewProfileNotFoundError reports a missing profile record for an identity.
func NewProfileNotFoundError(message string) AppError {
	return AppError{
		Code:       CodeProfileNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewInvalidPasswordError reports a password rejected before reaching the network.
func NewInvalidPasswordError(message string) AppError {
	return AppError{
		Code:       CodeInvalidPassword,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewStorageUnavailableError reports an inoperative secure or local storage.
func NewStorageUnavailableError(message string, err error) AppError {
	return AppError{
		Code:       CodeStorageUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}
}
