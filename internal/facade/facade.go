package facade

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"

	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/deviceactor"
	"github.com/sonarhub/sonarfleetd/internal/manager"
)

// ErrUnroutable reports a PingRequest whose SubRequest does not match
// any of the device actor's request shapes.
var ErrUnroutable = errors.New("facade: ping sub-request does not match any device actor request shape")

// DeviceMessage wraps a device-forwarded Ping reply (spec §6, §4.7).
type DeviceMessage struct {
	DeviceID device.ID `json:"device_id"`
	Answer   any       `json:"answer"`
}

// Answer is the reply envelope returned by Dispatch; exactly one field
// is populated, matching the Reply union of spec §6 (InnerDeviceHandler
// is intentionally absent — spec §6 notes it is "never serialized").
type Answer struct {
	DeviceMessage  *DeviceMessage        `json:"device_message,omitempty"`
	DeviceInfoList []device.Info         `json:"device_info_list,omitempty"`
	DeviceInfo     *device.Info          `json:"device_info,omitempty"`
	DeviceConfig   *device.Ping360Config `json:"device_config,omitempty"`
}

// registry is the subset of *wsregistry.Registry this package depends
// on, narrowed to an interface for testability.
type registry interface {
	Publish(text []byte, eventID *device.ID)
}

// deviceManager is the subset of *manager.Manager the façade depends
// on, narrowed to an interface so façade tests can substitute a fake
// manager without real transports.
type deviceManager interface {
	AutoCreate(ctx context.Context) ([]device.Info, error)
	Create(ctx context.Context, source device.Source, kind device.Kind) (device.Info, error)
	Delete(ctx context.Context, id device.ID) (device.Info, error)
	List(ctx context.Context) ([]device.Info, error)
	Info(ctx context.Context, id device.ID) (device.Info, error)
	GetDeviceHandler(ctx context.Context, id device.ID) (manager.Handler, error)
	SetIP(ctx context.Context, id device.ID, newIP net.IP) (device.Info, error)
	SetPing360Config(ctx context.Context, id device.ID, cfg device.Ping360Config) (device.Info, error)
	GetPing360Config(ctx context.Context, id device.ID) (device.Ping360Config, error)
	EnableContinuousMode(ctx context.Context, id device.ID) (device.Info, error)
	DisableContinuousMode(ctx context.Context, id device.ID) (device.Info, error)
}

// Facade is the request/response façade (C8) of spec §4.7.
type Facade struct {
	manager  deviceManager
	registry registry
	logger   *slog.Logger
}

// New constructs a façade over an already-running manager and the
// process-wide websocket registry.
func New(mgr deviceManager, reg registry, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{manager: mgr, registry: reg, logger: logger}
}

// Dispatch routes req to the manager (or, for Ping, directly to a
// device actor) and publishes every successful reply to the websocket
// registry before returning it (spec §4.7). Errors — manager-level or
// device-forwarded — are returned to the caller but never broadcast.
func (f *Facade) Dispatch(ctx context.Context, req Request) (Answer, error) {
	answer, eventID, err := f.dispatch(ctx, req)
	if err != nil {
		return Answer{}, err
	}
	f.publish(answer, eventID)
	return answer, nil
}

func (f *Facade) dispatch(ctx context.Context, req Request) (Answer, *device.ID, error) {
	switch r := req.(type) {
	case AutoCreateRequest:
		infos, err := f.manager.AutoCreate(ctx)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfoList: infos}, nil, nil

	case CreateRequest:
		info, err := f.manager.Create(ctx, r.Source, r.Kind)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfo: &info}, &info.ID, nil

	case DeleteRequest:
		info, err := f.manager.Delete(ctx, r.ID)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfo: &info}, &r.ID, nil

	case ListRequest:
		infos, err := f.manager.List(ctx)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfoList: infos}, nil, nil

	case InfoRequest:
		info, err := f.manager.Info(ctx, r.ID)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfo: &info}, &r.ID, nil

	case SearchRequest:
		return Answer{}, nil, manager.ErrNotImplemented

	case PingRequest:
		return f.dispatchPing(ctx, r)

	case GetDeviceHandlerRequest:
		if _, err := f.manager.GetDeviceHandler(ctx, r.ID); err != nil {
			return Answer{}, nil, err
		}
		// InnerDeviceHandler is never serialized (spec §6); callers that
		// need the handler itself use GetDeviceHandler on the manager
		// directly rather than through this façade.
		info, err := f.manager.Info(ctx, r.ID)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfo: &info}, &r.ID, nil

	case ModifyDeviceRequest:
		return f.dispatchModify(ctx, r)

	case EnableContinuousModeRequest:
		info, err := f.manager.EnableContinuousMode(ctx, r.ID)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfo: &info}, &r.ID, nil

	case DisableContinuousModeRequest:
		info, err := f.manager.DisableContinuousMode(ctx, r.ID)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfo: &info}, &r.ID, nil

	default:
		return Answer{}, nil, manager.ErrNotImplemented
	}
}

func (f *Facade) dispatchPing(ctx context.Context, r PingRequest) (Answer, *device.ID, error) {
	handler, err := f.manager.GetDeviceHandler(ctx, r.ID)
	if err != nil {
		return Answer{}, nil, err
	}

	var (
		value any
		svErr error
	)
	switch sub := r.SubRequest.(type) {
	case deviceactor.Ping1DRequest:
		value, svErr = handler.Ping1D(ctx, sub)
	case deviceactor.Ping360Request:
		value, svErr = handler.Ping360(ctx, sub)
	case deviceactor.CommonRequest:
		value, svErr = handler.Common(ctx, sub)
	default:
		return Answer{}, nil, ErrUnroutable
	}
	if svErr != nil {
		// Device-forwarded errors are returned to the caller but not
		// broadcast (spec §4.7).
		return Answer{}, nil, svErr
	}

	msg := DeviceMessage{DeviceID: r.ID, Answer: value}
	return Answer{DeviceMessage: &msg}, &r.ID, nil
}

func (f *Facade) dispatchModify(ctx context.Context, r ModifyDeviceRequest) (Answer, *device.ID, error) {
	switch op := r.Op.(type) {
	case SetIPOp:
		info, err := f.manager.SetIP(ctx, r.ID, op.NewIP)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfo: &info}, &r.ID, nil

	case SetPing360ConfigOp:
		info, err := f.manager.SetPing360Config(ctx, r.ID, op.Config)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceInfo: &info}, &r.ID, nil

	case GetPing360ConfigOp:
		cfg, err := f.manager.GetPing360Config(ctx, r.ID)
		if err != nil {
			return Answer{}, nil, err
		}
		return Answer{DeviceConfig: &cfg}, &r.ID, nil

	default:
		return Answer{}, nil, manager.ErrNotImplemented
	}
}

// publish serializes a successful Answer and fans it out via the
// websocket registry (spec §4.7). Marshal failures are logged, not
// fatal to the request that already succeeded.
func (f *Facade) publish(answer Answer, eventID *device.ID) {
	if f.registry == nil {
		return
	}
	data, err := json.Marshal(answer)
	if err != nil {
		f.logger.Warn("facade: failed to marshal answer for broadcast", "error", err)
		return
	}
	f.registry.Publish(data, eventID)
}
