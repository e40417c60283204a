package session

import (
	"context"
	"runtime/debug"

	"go.uber.org/zap"
)

type pushRegisterRequest struct {
	Token string `json:"token"`
}

// registerPush obtains the device push token and reports it to the backend
// without blocking login. Failures are logged and never affect the session.
func (s *Service) registerPush(ctx context.Context) {
	if s.push == nil || s.backend == nil {
		return
	}

	bg := context.WithoutCancel(ctx)
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("Push registration panicked",
					zap.Any("panic", r),
					zap.ByteString("stack", debug.Stack()))
			}
		}()
		if err := RegisterPushToken(bg, s.push, s.backend, s.log); err != nil {
			s.log.Warn("Push registration failed", zap.Error(err))
		}
	}()
}

// RegisterPushToken asks the device for a push token and posts it to the
// backend. A device that cannot provide a token is not an error.
func RegisterPushToken(ctx context.Context, registrar PushRegistrar, backend BackendAPI, log *zap.Logger) error {
	token, ok, err := registrar.RegisterCurrentDevice(ctx)
	if err != nil {
		return err
	}
	if !ok || token == "" {
		log.Debug("No push token available for this device")
		return nil
	}

	if err := backend.PostJSON(ctx, PushRegisterPath, pushRegisterRequest{Token: token}, nil); err != nil {
		return err
	}
	log.Info("Push token registered")
	return nil
}
