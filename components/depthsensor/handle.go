package depthsensor

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/depthmesh/logging"
)

// A DeviceHandle is the one hardware session shared by every Sensor built on the same
// Backend. The first Retain opens the device and the last Release closes it. At most one
// Sensor may claim the open session; the others stay inactive.
type DeviceHandle struct {
	backend Backend
	logger  logging.Logger

	mu    sync.Mutex
	refs  int
	open  bool
	owner *Sensor
}

// NewDeviceHandle returns a closed handle for backend.
func NewDeviceHandle(backend Backend, logger logging.Logger) *DeviceHandle {
	return &DeviceHandle{backend: backend, logger: logger}
}

// Backend returns the device behind the handle.
func (h *DeviceHandle) Backend() Backend {
	return h.backend
}

// Retain adds a reference, opening the device if it is not open yet. Open failures are
// returned as ErrDeviceUnavailable and leave the reference count unchanged.
func (h *DeviceHandle) Retain(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		if err := h.backend.Open(ctx); err != nil {
			return NewDeviceUnavailableError(err)
		}
		h.open = true
		h.logger.CDebugw(ctx, "device opened", "model", h.backend.Model())
	}
	h.refs++
	return nil
}

// Release drops a reference and closes the device when none remain.
func (h *DeviceHandle) Release(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs == 0 {
		return errors.New("device handle released more times than retained")
	}
	h.refs--
	if h.refs > 0 || !h.open {
		return nil
	}
	h.open = false
	h.owner = nil
	h.logger.CDebugw(ctx, "device closed", "model", h.backend.Model())
	return h.backend.Close(ctx)
}

// Claim makes owner the live user of the open session. It fails if the device is closed or
// already claimed by someone else.
func (h *DeviceHandle) Claim(owner *Sensor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.open {
		return false
	}
	if h.owner != nil && h.owner != owner {
		return false
	}
	h.owner = owner
	return true
}

// Unclaim gives up the session if owner holds it.
func (h *DeviceHandle) Unclaim(owner *Sensor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owner == owner {
		h.owner = nil
	}
}

// Owns reports whether owner holds the open session.
func (h *DeviceHandle) Owns(owner *Sensor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open && owner != nil && h.owner == owner
}

// IsOpen reports whether the device is open.
func (h *DeviceHandle) IsOpen() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.open
}

// References returns the number of outstanding Retain calls.
func (h *DeviceHandle) References() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}
