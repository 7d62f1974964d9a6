package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/deviceactor"
	"github.com/sonarhub/sonarfleetd/internal/facade"
	"github.com/sonarhub/sonarfleetd/internal/manager"
	"github.com/sonarhub/sonarfleetd/internal/sonarproto"
	"github.com/sonarhub/sonarfleetd/internal/transport"
)

// wireSource is the JSON shape of a device.Source on the wire (spec
// §3's SourceSelection, flattened for JSON rather than carried as a
// tagged Go interface).
type wireSource struct {
	Kind     string `json:"kind"` // "udp" | "serial"
	IP       string `json:"ip,omitempty"`
	Port     uint16 `json:"port,omitempty"`
	Path     string `json:"path,omitempty"`
	Baudrate uint32 `json:"baudrate,omitempty"`
}

func (w wireSource) toSource() (device.Source, error) {
	switch w.Kind {
	case "udp":
		ip := net.ParseIP(w.IP)
		if ip == nil {
			return device.Source{}, fmt.Errorf("httpserver: invalid ip %q", w.IP)
		}
		return device.NewUDPSource(ip, w.Port), nil
	case "serial":
		return device.NewSerialSource(w.Path, w.Baudrate), nil
	default:
		return device.Source{}, fmt.Errorf("httpserver: unknown source kind %q", w.Kind)
	}
}

var kindNames = map[string]device.Kind{
	"common":  device.KindCommon,
	"ping1d":  device.KindPing1D,
	"ping360": device.KindPing360,
	"auto":    device.KindAuto,
}

func parseKind(s string) (device.Kind, error) {
	if s == "" {
		return device.KindAuto, nil
	}
	k, ok := kindNames[s]
	if !ok {
		return 0, fmt.Errorf("httpserver: unknown device kind %q", s)
	}
	return k, nil
}

// wireRequest is the JSON envelope for facade.Request (spec §6: "tagged
// union over Request variants"). Only the fields relevant to Type are
// populated by the caller.
type wireRequest struct {
	Type       string          `json:"type"`
	ID         *uuid.UUID      `json:"id,omitempty"`
	Source     *wireSource     `json:"source,omitempty"`
	Kind       string          `json:"kind,omitempty"`
	SubRequest *wireSubRequest `json:"sub_request,omitempty"`
	ModifyOp   *wireModifyOp   `json:"modify_op,omitempty"`
}

// wireSubRequest is the JSON shape of a PingRequest's SubRequest (spec
// §4.2's three closed request sets).
type wireSubRequest struct {
	Type             string                        `json:"type"`
	ProfileID        uint16                        `json:"profile_id,omitempty"`
	AngleGrad        uint16                        `json:"angle_grad,omitempty"`
	Transmit         uint8                         `json:"transmit,omitempty"`
	NumberOfSamples  uint16                        `json:"number_of_samples,omitempty"`
	AutoTransmitSpec *sonarproto.AutoTransmitConfig `json:"auto_transmit_config,omitempty"`
}

func (w wireSubRequest) toSubRequest() (any, error) {
	switch w.Type {
	case "continuous_start":
		return deviceactor.ContinuousStartRequest{ProfileID: w.ProfileID}, nil
	case "continuous_stop":
		return deviceactor.ContinuousStopRequest{ProfileID: w.ProfileID}, nil
	case "transducer":
		return deviceactor.TransducerRequest{TransducerRequest: sonarproto.TransducerRequest{
			AngleGrad:       w.AngleGrad,
			Transmit:        w.Transmit,
			NumberOfSamples: w.NumberOfSamples,
		}}, nil
	case "auto_transmit":
		if w.AutoTransmitSpec == nil {
			return nil, errors.New("httpserver: auto_transmit sub-request missing auto_transmit_config")
		}
		return deviceactor.AutoTransmitRequest{AutoTransmitConfig: *w.AutoTransmitSpec}, nil
	case "motor_off":
		return deviceactor.MotorOffRequest{}, nil
	case "device_information":
		return deviceactor.DeviceInformationRequest{}, nil
	case "protocol_version":
		return deviceactor.ProtocolVersionRequest{}, nil
	default:
		return nil, fmt.Errorf("httpserver: unknown sub-request type %q", w.Type)
	}
}

// wireModifyOp is the JSON shape of a ModifyDeviceRequest's Op (spec §4.3).
type wireModifyOp struct {
	Type          string                `json:"type"`
	NewIP         string                `json:"new_ip,omitempty"`
	Ping360Config *device.Ping360Config `json:"ping360_config,omitempty"`
}

func (w wireModifyOp) toModifyOp() (facade.ModifyOp, error) {
	switch w.Type {
	case "set_ip":
		ip := net.ParseIP(w.NewIP)
		if ip == nil {
			return nil, fmt.Errorf("httpserver: invalid new_ip %q", w.NewIP)
		}
		return facade.SetIPOp{NewIP: ip}, nil
	case "set_ping360_config":
		if w.Ping360Config == nil {
			return nil, errors.New("httpserver: set_ping360_config op missing ping360_config")
		}
		return facade.SetPing360ConfigOp{Config: *w.Ping360Config}, nil
	case "get_ping360_config":
		return facade.GetPing360ConfigOp{}, nil
	default:
		return nil, fmt.Errorf("httpserver: unknown modify op type %q", w.Type)
	}
}

// decodeRequest translates a wire envelope into a facade.Request (spec
// §6's JSON tagged union, deflattened back into the closed Go
// interfaces dispatch actually runs on).
func decodeRequest(data []byte) (facade.Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("httpserver: decode request: %w", err)
	}

	requireID := func() (device.ID, error) {
		if w.ID == nil {
			return device.ID{}, fmt.Errorf("httpserver: %q request requires id", w.Type)
		}
		return *w.ID, nil
	}

	switch w.Type {
	case "auto_create":
		return facade.AutoCreateRequest{}, nil

	case "create":
		if w.Source == nil {
			return nil, errors.New("httpserver: create request requires source")
		}
		source, err := w.Source.toSource()
		if err != nil {
			return nil, err
		}
		kind, err := parseKind(w.Kind)
		if err != nil {
			return nil, err
		}
		return facade.CreateRequest{Source: source, Kind: kind}, nil

	case "delete":
		id, err := requireID()
		if err != nil {
			return nil, err
		}
		return facade.DeleteRequest{ID: id}, nil

	case "list":
		return facade.ListRequest{}, nil

	case "info":
		id, err := requireID()
		if err != nil {
			return nil, err
		}
		return facade.InfoRequest{ID: id}, nil

	case "search":
		return facade.SearchRequest{}, nil

	case "ping":
		id, err := requireID()
		if err != nil {
			return nil, err
		}
		if w.SubRequest == nil {
			return nil, errors.New("httpserver: ping request requires sub_request")
		}
		sub, err := w.SubRequest.toSubRequest()
		if err != nil {
			return nil, err
		}
		return facade.PingRequest{ID: id, SubRequest: sub}, nil

	case "get_device_handler":
		id, err := requireID()
		if err != nil {
			return nil, err
		}
		return facade.GetDeviceHandlerRequest{ID: id}, nil

	case "modify_device":
		id, err := requireID()
		if err != nil {
			return nil, err
		}
		if w.ModifyOp == nil {
			return nil, errors.New("httpserver: modify_device request requires modify_op")
		}
		op, err := w.ModifyOp.toModifyOp()
		if err != nil {
			return nil, err
		}
		return facade.ModifyDeviceRequest{ID: id, Op: op}, nil

	case "enable_continuous_mode":
		id, err := requireID()
		if err != nil {
			return nil, err
		}
		return facade.EnableContinuousModeRequest{ID: id}, nil

	case "disable_continuous_mode":
		id, err := requireID()
		if err != nil {
			return nil, err
		}
		return facade.DisableContinuousModeRequest{ID: id}, nil

	default:
		return nil, fmt.Errorf("httpserver: unknown request type %q", w.Type)
	}
}

// wireError is the tagged union over ManagerError kinds of spec §7.
type wireError struct {
	Kind   string     `json:"kind"`
	Detail string     `json:"detail"`
	ID     *uuid.UUID `json:"id,omitempty"`
	Status string     `json:"status,omitempty"`
}

// encodeError maps an error returned by the façade to the wire
// taxonomy of spec §7. Kinds not recognized fall back to "internal".
func encodeError(err error) wireError {
	var (
		alreadyExists  *manager.ErrAlreadyExists
		notExists      *manager.ErrDeviceNotExists
		statusMismatch *manager.ErrDeviceStatusMismatch
		sourceErr      *transport.SourceError
		deviceErr      *sonarproto.ErrDevice
	)
	switch {
	case errors.As(err, &alreadyExists):
		return wireError{Kind: "device_already_exists", Detail: err.Error(), ID: uuidPtr(alreadyExists.ID)}
	case errors.As(err, &notExists):
		return wireError{Kind: "device_not_exists", Detail: err.Error(), ID: uuidPtr(notExists.ID)}
	case errors.As(err, &statusMismatch):
		return wireError{
			Kind:   "device_status_mismatch",
			Detail: err.Error(),
			ID:     uuidPtr(statusMismatch.ID),
			Status: statusMismatch.Status.String(),
		}
	case errors.As(err, &sourceErr):
		return wireError{Kind: "transport_source_failure", Detail: err.Error()}
	case errors.As(err, &deviceErr):
		return wireError{Kind: "device_error", Detail: err.Error()}
	case errors.Is(err, manager.ErrNoDevices):
		return wireError{Kind: "device_not_exists", Detail: err.Error()}
	case errors.Is(err, manager.ErrNotImplemented), errors.Is(err, deviceactor.ErrNotImplemented):
		return wireError{Kind: "not_implemented", Detail: err.Error()}
	case errors.Is(err, manager.ErrUnsupportedKind), errors.Is(err, deviceactor.ErrNotSupported):
		return wireError{Kind: "not_implemented", Detail: err.Error()}
	case errors.Is(err, facade.ErrUnroutable):
		return wireError{Kind: "not_implemented", Detail: err.Error()}
	default:
		return wireError{Kind: "internal", Detail: err.Error()}
	}
}

func uuidPtr(id device.ID) *uuid.UUID {
	u := uuid.UUID(id)
	return &u
}
