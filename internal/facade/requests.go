// Package facade implements the request/response façade (C8): the
// thin entry point HTTP and websocket edges (out of scope here) call
// into. It forwards every request to the manager's mailbox, and for
// Ping requests performs the two-hop dance of spec §4.7: fetch a
// device handler, then submit the sub-request directly to that
// device's actor.
package facade

import (
	"net"

	"github.com/sonarhub/sonarfleetd/internal/device"
)

// Request is the tagged union of spec §6: "AutoCreate, Create, Delete,
// List, Info, Search, Ping, GetDeviceHandler, ModifyDevice,
// EnableContinuousMode, DisableContinuousMode".
type Request interface{ isRequest() }

type AutoCreateRequest struct{}

func (AutoCreateRequest) isRequest() {}

type CreateRequest struct {
	Source device.Source
	Kind   device.Kind
}

func (CreateRequest) isRequest() {}

type DeleteRequest struct{ ID device.ID }

func (DeleteRequest) isRequest() {}

type ListRequest struct{}

func (ListRequest) isRequest() {}

type InfoRequest struct{ ID device.ID }

func (InfoRequest) isRequest() {}

// SearchRequest has no handler in the original system; spec §9 leaves
// it NotImplemented deliberately rather than guessing its semantics.
type SearchRequest struct{}

func (SearchRequest) isRequest() {}

// PingRequest is the two-hop forward of spec §4.7. SubRequest must be a
// deviceactor.Ping1DRequest, deviceactor.Ping360Request, or
// deviceactor.CommonRequest — anything else answers ErrUnroutable.
type PingRequest struct {
	ID         device.ID
	SubRequest any
}

func (PingRequest) isRequest() {}

type GetDeviceHandlerRequest struct{ ID device.ID }

func (GetDeviceHandlerRequest) isRequest() {}

// ModifyOp is the closed set of ModifyDevice sub-operations (spec
// §4.3).
type ModifyOp interface{ isModifyOp() }

type SetIPOp struct{ NewIP net.IP }

func (SetIPOp) isModifyOp() {}

type SetPing360ConfigOp struct{ Config device.Ping360Config }

func (SetPing360ConfigOp) isModifyOp() {}

type GetPing360ConfigOp struct{}

func (GetPing360ConfigOp) isModifyOp() {}

type ModifyDeviceRequest struct {
	ID device.ID
	Op ModifyOp
}

func (ModifyDeviceRequest) isRequest() {}

type EnableContinuousModeRequest struct{ ID device.ID }

func (EnableContinuousModeRequest) isRequest() {}

type DisableContinuousModeRequest struct{ ID device.ID }

func (DisableContinuousModeRequest) isRequest() {}
