package session

import (
	"context"
)

// IdentityProvider is the federated authentication service.
type IdentityProvider interface {
	// CreateIdentity registers a new email+password identity.
	CreateIdentity(ctx context.Context, email, password string) (Identity, error)
	// SetDisplayName sets the provider-side display name of an identity.
	SetDisplayName(ctx context.Context, id Identity, displayName string) error
	// DeleteIdentity removes an identity. Used to undo a failed registration.
	DeleteIdentity(ctx context.Context, id Identity) error

	SignIn(ctx context.Context, email, password string) (*FederatedSession, error)
	// SignOut ends the current provider session. The local session must be
	// gone afterwards even when an error is returned.
	SignOut(ctx context.Context) error
	CurrentSession() (*FederatedSession, bool)

	UpdateProfile(ctx context.Context, id Identity, update ProfileUpdate) error
	ChangePassword(ctx context.Context, id Identity, newPassword string) error
}

// ProfileStore holds one ProfileRecord per identity.
type ProfileStore interface {
	CreateProfile(ctx context.Context, profile ProfileRecord) error
	GetProfile(ctx context.Context, id Identity) (ProfileRecord, bool, error)
	UpdateDisplayName(ctx context.Context, id Identity, displayName string) error
}

// TokenStore is the secure key-value store holding the backend session token.
type TokenStore interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// DisplayNameCache is the local, non-authoritative copy of the display name.
type DisplayNameCache interface {
	DisplayName() (string, bool, error)
	SetDisplayName(name string) error
	// ClearUserState drops the display name and any other per-user local state.
	ClearUserState() error
}

// TokenExchanger trades a federated credential for a stored backend session token.
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, federatedCredential string) bool
}

// PushRegistrar obtains this device's push token. ok is false when push is
// unavailable (no permission, not a physical device).
type PushRegistrar interface {
	RegisterCurrentDevice(ctx context.Context) (token string, ok bool, err error)
}

// BackendAPI is the authenticated JSON client for the backend.
type BackendAPI interface {
	PostJSON(ctx context.Context, path string, in, out any) error
}
