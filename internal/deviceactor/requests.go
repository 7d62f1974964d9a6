package deviceactor

import (
	"errors"

	"github.com/sonarhub/sonarfleetd/internal/sonarproto"
)

// ErrNotSupported answers a request whose shape does not match the
// actor's current kind (spec §4.2: "a client-programming signal", not
// an error to retry).
var ErrNotSupported = errors.New("deviceactor: request not supported by this device's kind")

// ErrNotImplemented answers a Common request this module does not
// implement (spec §4.2: "NotImplemented for unimplemented commons").
var ErrNotImplemented = errors.New("deviceactor: common operation not implemented")

// ErrStopped is returned for any request submitted after the actor
// loop has already terminated.
var ErrStopped = errors.New("deviceactor: actor has stopped")

// Ping1DRequest is the closed set of operations valid only against a
// Ping1D actor.
type Ping1DRequest interface{ ping1DRequest() }

// ContinuousStartRequest begins the Ping1D continuous-streaming
// startup routine (spec §4.5 Ping1D strategy).
type ContinuousStartRequest struct{ ProfileID uint16 }

func (ContinuousStartRequest) ping1DRequest() {}

// ContinuousStopRequest is the shutdown counterpart issued on disable.
type ContinuousStopRequest struct{ ProfileID uint16 }

func (ContinuousStopRequest) ping1DRequest() {}

// Ping360Request is the closed set of operations valid only against a
// Ping360 actor.
type Ping360Request interface{ ping360Request() }

// TransducerRequest issues one single-shot angular scan (software
// stepping strategy).
type TransducerRequest struct{ sonarproto.TransducerRequest }

func (TransducerRequest) ping360Request() {}

// AutoTransmitRequest arms the firmware auto-transmit sweep.
type AutoTransmitRequest struct{ sonarproto.AutoTransmitConfig }

func (AutoTransmitRequest) ping360Request() {}

// MotorOffRequest stops the Ping360 motor.
type MotorOffRequest struct{}

func (MotorOffRequest) ping360Request() {}

// CommonRequest is the closed set of operations valid against any
// concrete kind.
type CommonRequest interface{ commonRequest() }

// DeviceInformationRequest re-fetches the device identity block.
type DeviceInformationRequest struct{}

func (DeviceInformationRequest) commonRequest() {}

// ProtocolVersionRequest fetches the wire protocol version.
type ProtocolVersionRequest struct{}

func (ProtocolVersionRequest) commonRequest() {}

// UpgradeResult is the outcome of an Upgrade request (spec §4.2).
type UpgradeResult uint8

const (
	UpgradeUnknown UpgradeResult = iota
	UpgradePing1D
	UpgradePing360
)

func (r UpgradeResult) String() string {
	switch r {
	case UpgradePing1D:
		return "ping1d"
	case UpgradePing360:
		return "ping360"
	default:
		return "unknown"
	}
}
