package session

import (
	"time"
)

// Identity is the identity provider's stable user id.
type Identity string

// State is the coordinator's view of the device session.
type State int

const (
	// LoggedOut means no provider session and no backend token.
	LoggedOut State = iota
	// FederatedOnly is held only while Login is running.
	FederatedOnly
	// FullyAuthenticated means provider session, backend token and cached display name are all set.
	FullyAuthenticated
)

func (s State) String() string {
	switch s {
	case FederatedOnly:
		return "federated_only"
	case FullyAuthenticated:
		return "fully_authenticated"
	default:
		return "logged_out"
	}
}

// FederatedSession is an authenticated session with the identity provider.
// IDToken is the federated credential exchanged for a backend session token.
type FederatedSession struct {
	Identity     Identity
	Email        string
	DisplayName  string
	IDToken      string
	AccessToken  string
	RefreshToken string
}

// ProfileRecord is the user's profile document, one per identity.
type ProfileRecord struct {
	Identity    Identity
	DisplayName string
	Email       string
}

// User is returned by Register and Login.
type User struct {
	Identity    Identity `json:"identity"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
}

// ProfileUpdate carries the fields to change. Nil means unchanged.
type ProfileUpdate struct {
	DisplayName *string
	PhotoURL    *string
}

// Status describes the session as seen from this device.
type Status struct {
	State           string     `json:"state"`
	Identity        Identity   `json:"identity,omitempty"`
	DisplayName     string     `json:"displayName,omitempty"`
	HasBackendToken bool       `json:"hasBackendToken"`
	TokenExpiresAt  *time.Time `json:"tokenExpiresAt,omitempty"`
}
