// Package push obtains this device's push notification token.
package push

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Permission is the notification permission state of the device.
type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)

// ParsePermission maps a configured value onto a Permission. Unknown values
// are undetermined, so the user is asked.
func ParsePermission(s string) Permission {
	switch Permission(s) {
	case PermissionGranted, PermissionDenied:
		return Permission(s)
	default:
		return PermissionUndetermined
	}
}

// Device is the platform notification service.
type Device interface {
	IsPhysicalDevice() bool
	PermissionStatus(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	PushToken(ctx context.Context) (string, error)
}

// Registrar asks the device for permission and a push token.
type Registrar struct {
	device Device
	log    *zap.Logger
}

// NewRegistrar creates a registrar for device.
func NewRegistrar(device Device, log *zap.Logger) *Registrar {
	return &Registrar{device: device, log: log}
}

// RegisterCurrentDevice returns the push token. ok is false when the device
// cannot receive pushes or the user refuses permission.
func (r *Registrar) RegisterCurrentDevice(ctx context.Context) (string, bool, error) {
	if !r.device.IsPhysicalDevice() {
		r.log.Info("push notifications need a physical device")
		return "", false, nil
	}

	status, err := r.device.PermissionStatus(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to read notification permission: %w", err)
	}
	if status != PermissionGranted {
		status, err = r.device.RequestPermission(ctx)
		if err != nil {
			return "", false, fmt.Errorf("failed to request notification permission: %w", err)
		}
	}
	if status != PermissionGranted {
		r.log.Info("notification permission not granted", zap.String("permission", string(status)))
		return "", false, nil
	}

	token, err := r.device.PushToken(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to obtain push token: %w", err)
	}
	if token == "" {
		return "", false, nil
	}
	return token, true, nil
}
