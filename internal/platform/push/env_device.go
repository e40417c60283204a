package push

import (
	"context"
	"sync"
)

// EnvDevice is a Device driven by configuration. A non-empty token marks a
// push-capable device. An undetermined permission becomes granted once requested.
type EnvDevice struct {
	token string

	mu         sync.Mutex
	permission Permission
}

// NewEnvDevice creates a device from the configured token and permission.
func NewEnvDevice(token, permission string) *EnvDevice {
	return &EnvDevice{token: token, permission: ParsePermission(permission)}
}

func (d *EnvDevice) IsPhysicalDevice() bool {
	return d.token != ""
}

func (d *EnvDevice) PermissionStatus(context.Context) (Permission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.permission, nil
}

func (d *EnvDevice) RequestPermission(context.Context) (Permission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.permission == PermissionUndetermined {
		d.permission = PermissionGranted
	}
	return d.permission, nil
}

func (d *EnvDevice) PushToken(context.Context) (string, error) {
	return d.token, nil
}
