package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/codecraftes/mottu-yard/internal/common/utils"
	apperrors "github.com/codecraftes/mottu-yard/internal/domain/errors"
)

// Service coordinates the identity provider, the backend token exchange,
// the secure token store, the profile store and the local cache so that
// each user-facing operation ends in a defined state.
//
// Register, Login, Logout, ChangePassword and UpdateProfile are serialized
// by an internal mutex.
type Service struct {
	provider  IdentityProvider
	profiles  ProfileStore
	tokens    TokenStore
	cache     DisplayNameCache
	exchanger TokenExchanger
	push      PushRegistrar
	backend   BackendAPI
	log       *zap.Logger

	mu    sync.Mutex
	state State
	tasks sync.WaitGroup
}

// Dependencies groups the collaborators of Service.
// Push and Backend may be nil, which disables push registration.
type Dependencies struct {
	Provider  IdentityProvider
	Profiles  ProfileStore
	Tokens    TokenStore
	Cache     DisplayNameCache
	Exchanger TokenExchanger
	Push      PushRegistrar
	Backend   BackendAPI
}

// NewService creates a new session service
func NewService(deps Dependencies, log *zap.Logger) *Service {
	return &Service{
		provider:  deps.Provider,
		profiles:  deps.Profiles,
		tokens:    deps.Tokens,
		cache:     deps.Cache,
		exchanger: deps.Exchanger,
		push:      deps.Push,
		backend:   deps.Backend,
		log:       log,
		state:     LoggedOut,
	}
}

// State returns the current session state
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Wait blocks until background push registrations have finished.
func (s *Service) Wait() {
	s.tasks.Wait()
}

// Register creates an identity, sets its display name, writes the profile
// record and signs out. Registration never leaves the user logged in.
// If anything after the identity was created fails, the identity is deleted.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (User, error) {
	if err := utils.ValidateEmail(email); err != nil {
		return User{}, err
	}
	if err := utils.ValidateRequiredString(displayName, "display name"); err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.provider.CreateIdentity(ctx, email, password)
	if err != nil {
		return User{}, providerError(err)
	}

	if err := s.provider.SetDisplayName(ctx, id, displayName); err != nil {
		return User{}, s.discardIdentity(ctx, id, providerError(err))
	}

	profile := ProfileRecord{Identity: id, DisplayName: displayName, Email: email}
	if err := s.profiles.CreateProfile(ctx, profile); err != nil {
		return User{}, s.discardIdentity(ctx, id, err)
	}

	if err := s.provider.SignOut(ctx); err != nil {
		return User{}, providerError(err)
	}

	s.log.Info("User registered", zap.String("identity", string(id)))
	return User{Identity: id, Email: email, DisplayName: displayName}, nil
}

func (s *Service) discardIdentity(ctx context.Context, id Identity, cause error) error {
	if err := s.provider.DeleteIdentity(ctx, id); err != nil {
		s.log.Error("Failed to delete identity after incomplete registration",
			zap.String("identity", string(id)), zap.Error(err))
		return errors.Join(cause, providerError(err))
	}
	s.log.Warn("Deleted identity after incomplete registration",
		zap.String("identity", string(id)), zap.Error(cause))
	return cause
}

// Login signs in with the identity provider, exchanges the federated
// credential for a backend session token, starts push registration in the
// background and loads the profile. A rejected sign-in leaves whatever
// session the device already held untouched. Any later failure clears the
// provider session, the stored token and the cached display name.
func (s *Service) Login(ctx context.Context, email, password string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fed, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return User{}, providerError(err)
	}
	s.state = FederatedOnly

	if !s.exchanger.ExchangeToken(ctx, fed.IDToken) {
		return User{}, s.rollback(ctx, apperrors.NewBackendAuthenticationFailedError("backend did not issue a session token"))
	}

	s.registerPush(ctx)

	profile, found, err := s.profiles.GetProfile(ctx, fed.Identity)
	if err != nil {
		return User{}, s.rollback(ctx, err)
	}
	if !found {
		return User{}, s.rollback(ctx, apperrors.NewProfileNotFoundError("no profile record for "+string(fed.Identity)))
	}

	if err := s.cache.SetDisplayName(profile.DisplayName); err != nil {
		return User{}, s.rollback(ctx, err)
	}

	s.state = FullyAuthenticated
	s.log.Info("User logged in", zap.String("identity", string(fed.Identity)))
	return User{Identity: fed.Identity, Email: fed.Email, DisplayName: profile.DisplayName}, nil
}

// rollback returns the device to LoggedOut after a failed login. Cleanup
// failures are joined to cause.
func (s *Service) rollback(ctx context.Context, cause error) error {
	errs := []error{cause}
	if err := s.provider.SignOut(ctx); err != nil {
		s.log.Warn("Provider sign-out failed during login rollback", zap.Error(err))
	}
	if err := s.tokens.Delete(ctx, BackendTokenKey); err != nil {
		s.log.Error("Failed to delete backend token during login rollback", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.cache.ClearUserState(); err != nil {
		s.log.Error("Failed to clear local user state during login rollback", zap.Error(err))
		errs = append(errs, err)
	}
	s.state = LoggedOut
	s.log.Warn("Login rolled back", zap.Error(cause))
	return errors.Join(errs...)
}

// Logout signs out of the identity provider, deletes the backend token and
// clears local user state. All three steps run even if earlier ones fail.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.provider.SignOut(ctx); err != nil {
		s.log.Warn("Provider sign-out failed", zap.Error(err))
		errs = append(errs, providerError(err))
	}
	if err := s.tokens.Delete(ctx, BackendTokenKey); err != nil {
		s.log.Error("Failed to delete backend token", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.cache.ClearUserState(); err != nil {
		s.log.Error("Failed to clear local user state", zap.Error(err))
		errs = append(errs, err)
	}
	s.state = LoggedOut
	s.log.Info("Backend token removed during logout")
	return errors.Join(errs...)
}

// ChangePassword validates newPassword locally and hands it to the provider.
// id must be the identity of the current provider session.
func (s *Service) ChangePassword(ctx context.Context, id Identity, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return apperrors.NewInvalidPasswordError("password must not be empty")
	}
	if utf8.RuneCountInString(newPassword) < MinPasswordLength {
		return apperrors.NewInvalidPasswordError("password is too short")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSession(id); err != nil {
		return err
	}

	if err := s.provider.ChangePassword(ctx, id, newPassword); err != nil {
		return providerError(err)
	}
	return nil
}

// UpdateProfile updates the provider profile. A new display name is also
// written to the profile record and the local cache; if either write fails
// the earlier writes are reverted to the previous name. id must be the
// identity of the current provider session.
func (s *Service) UpdateProfile(ctx context.Context, id Identity, update ProfileUpdate) error {
	if update.DisplayName == nil && update.PhotoURL == nil {
		return nil
	}
	if update.DisplayName != nil {
		if err := utils.ValidateRequiredString(*update.DisplayName, "display name"); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireSession(id); err != nil {
		return err
	}

	var previous ProfileRecord
	if update.DisplayName != nil {
		var found bool
		var err error
		previous, found, err = s.profiles.GetProfile(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return apperrors.NewProfileNotFoundError("no profile record for " + string(id))
		}
	}

	if err := s.provider.UpdateProfile(ctx, id, update); err != nil {
		return providerError(err)
	}
	if update.DisplayName == nil {
		return nil
	}

	name := *update.DisplayName
	if err := s.profiles.UpdateDisplayName(ctx, id, name); err != nil {
		s.revertProviderName(ctx, id, previous.DisplayName)
		return err
	}

	if err := s.cache.SetDisplayName(name); err != nil {
		if rerr := s.profiles.UpdateDisplayName(ctx, id, previous.DisplayName); rerr != nil {
			s.log.Error("Failed to revert profile display name", zap.Error(rerr))
		}
		s.revertProviderName(ctx, id, previous.DisplayName)
		return err
	}

	s.log.Info("Display name updated", zap.String("identity", string(id)))
	return nil
}

// requireSession checks that id is signed in with the provider on this device.
func (s *Service) requireSession(id Identity) error {
	if id == "" {
		return apperrors.NewAuthenticationError("user is not authenticated")
	}
	fed, ok := s.provider.CurrentSession()
	if !ok {
		return apperrors.NewAuthenticationError("no active session")
	}
	if fed.Identity != id {
		return apperrors.NewAuthenticationError("session belongs to another user")
	}
	return nil
}

func (s *Service) revertProviderName(ctx context.Context, id Identity, name string) {
	if err := s.provider.UpdateProfile(ctx, id, ProfileUpdate{DisplayName: &name}); err != nil {
		s.log.Error("Failed to revert provider display name", zap.Error(err))
	}
}

// Status reports what this device currently holds. When no login ran in
// this process the state is read back from the persisted stores: a stored
// backend token means the device is fully authenticated, a provider session
// alone means federated only.
func (s *Service) Status(ctx context.Context) (Status, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	var st Status
	fed, hasSession := s.provider.CurrentSession()
	if hasSession {
		st.Identity = fed.Identity
	}

	name, ok, err := s.cache.DisplayName()
	if err != nil {
		return Status{}, err
	}
	if ok {
		st.DisplayName = name
	}

	token, ok, err := s.tokens.Get(ctx, BackendTokenKey)
	if err != nil {
		return Status{}, err
	}
	st.HasBackendToken = ok
	if ok {
		if exp, hasExp := utils.TokenExpiry(token); hasExp {
			exp = exp.In(time.UTC)
			st.TokenExpiresAt = &exp
		}
	}

	if state == LoggedOut {
		switch {
		case st.HasBackendToken:
			state = FullyAuthenticated
		case hasSession:
			state = FederatedOnly
		}
	}
	st.State = state.String()
	return st, nil
}
