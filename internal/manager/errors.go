package manager

import (
	"errors"
	"fmt"

	"github.com/sonarhub/sonarfleetd/internal/device"
)

// ErrAlreadyExists reports the deterministic id-collision "already
// exists" signal of spec §3: two Create requests with the same source
// always yield the same id, and the second is rejected with this error
// rather than silently succeeding.
type ErrAlreadyExists struct{ ID device.ID }

func (e *ErrAlreadyExists) Error() string {
	return fmt.Sprintf("manager: device %s already exists", e.ID)
}

// ErrDeviceNotExists reports an id absent from the registry.
type ErrDeviceNotExists struct{ ID device.ID }

func (e *ErrDeviceNotExists) Error() string {
	return fmt.Sprintf("manager: device %s does not exist", e.ID)
}

// ErrDeviceStatusMismatch reports an operation illegal in the device's
// current status (spec §7), e.g. enabling continuous mode on a Stopped
// device.
type ErrDeviceStatusMismatch struct {
	ID     device.ID
	Status device.Status
}

func (e *ErrDeviceStatusMismatch) Error() string {
	return fmt.Sprintf("manager: device %s has status %s", e.ID, e.Status)
}

// ErrNoDevices is returned by List when the registry is empty.
var ErrNoDevices = errors.New("manager: no devices registered")

// ErrNotImplemented is returned for a known but unsupported request
// shape (spec §7), e.g. the Search request (spec §9 Open Questions).
var ErrNotImplemented = errors.New("manager: request not implemented")

// ErrUnsupportedKind reports an operation attempted against a device
// kind that cannot serve it — e.g. SetPing360Config against a Ping1D
// device. EnableContinuousMode against a Common (non-streaming) device
// does not use it; that fails with deviceactor.ErrNotSupported.
var ErrUnsupportedKind = errors.New("manager: operation not supported for this device's kind")
