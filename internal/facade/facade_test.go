package facade

import (
	"context"
	"net"
	"testing"

	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/deviceactor"
	"github.com/sonarhub/sonarfleetd/internal/manager"
)

type fakeHandler struct {
	commonFn func(ctx context.Context, req deviceactor.CommonRequest) (any, error)
}

func (h *fakeHandler) Ping1D(ctx context.Context, req deviceactor.Ping1DRequest) (any, error) {
	return nil, deviceactor.ErrNotSupported
}
func (h *fakeHandler) Ping360(ctx context.Context, req deviceactor.Ping360Request) (any, error) {
	return nil, deviceactor.ErrNotSupported
}
func (h *fakeHandler) Common(ctx context.Context, req deviceactor.CommonRequest) (any, error) {
	return h.commonFn(ctx, req)
}

type fakeManager struct {
	infos   map[device.ID]device.Info
	handler manager.Handler
}

func (m *fakeManager) AutoCreate(ctx context.Context) ([]device.Info, error) { return nil, nil }
func (m *fakeManager) Create(ctx context.Context, source device.Source, kind device.Kind) (device.Info, error) {
	return device.Info{}, nil
}
func (m *fakeManager) Delete(ctx context.Context, id device.ID) (device.Info, error) {
	return device.Info{}, nil
}
func (m *fakeManager) List(ctx context.Context) ([]device.Info, error) { return nil, manager.ErrNoDevices }
func (m *fakeManager) Info(ctx context.Context, id device.ID) (device.Info, error) {
	info, ok := m.infos[id]
	if !ok {
		return device.Info{}, &manager.ErrDeviceNotExists{ID: id}
	}
	return info, nil
}
func (m *fakeManager) GetDeviceHandler(ctx context.Context, id device.ID) (manager.Handler, error) {
	if _, ok := m.infos[id]; !ok {
		return nil, &manager.ErrDeviceNotExists{ID: id}
	}
	return m.handler, nil
}
func (m *fakeManager) SetIP(ctx context.Context, id device.ID, newIP net.IP) (device.Info, error) {
	return device.Info{}, nil
}
func (m *fakeManager) SetPing360Config(ctx context.Context, id device.ID, cfg device.Ping360Config) (device.Info, error) {
	return device.Info{}, nil
}
func (m *fakeManager) GetPing360Config(ctx context.Context, id device.ID) (device.Ping360Config, error) {
	return device.Ping360Config{}, nil
}
func (m *fakeManager) EnableContinuousMode(ctx context.Context, id device.ID) (device.Info, error) {
	return device.Info{}, nil
}
func (m *fakeManager) DisableContinuousMode(ctx context.Context, id device.ID) (device.Info, error) {
	return device.Info{}, nil
}

type fakeRegistry struct {
	published [][]byte
}

func (r *fakeRegistry) Publish(text []byte, eventID *device.ID) {
	r.published = append(r.published, text)
}

func TestDispatchSearchIsNotImplemented(t *testing.T) {
	f := New(&fakeManager{}, &fakeRegistry{}, nil)
	_, err := f.Dispatch(context.Background(), SearchRequest{})
	if err != manager.ErrNotImplemented {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
}

func TestDispatchInfoPublishesOnSuccess(t *testing.T) {
	id := device.IDFromSource(device.NewUDPSource(net.IPv4(192, 168, 2, 2), 12345))
	reg := &fakeRegistry{}
	f := New(&fakeManager{infos: map[device.ID]device.Info{id: {ID: id}}}, reg, nil)

	ans, err := f.Dispatch(context.Background(), InfoRequest{ID: id})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ans.DeviceInfo == nil || ans.DeviceInfo.ID != id {
		t.Fatalf("unexpected answer: %+v", ans)
	}
	if len(reg.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(reg.published))
	}
}

func TestDispatchInfoNotFoundDoesNotPublish(t *testing.T) {
	reg := &fakeRegistry{}
	f := New(&fakeManager{infos: map[device.ID]device.Info{}}, reg, nil)

	_, err := f.Dispatch(context.Background(), InfoRequest{ID: device.ID{}})
	if err == nil {
		t.Fatal("expected error for unknown device")
	}
	if len(reg.published) != 0 {
		t.Fatalf("expected no published events on error, got %d", len(reg.published))
	}
}

func TestDispatchPingForwardsToDeviceAndPublishes(t *testing.T) {
	id := device.IDFromSource(device.NewUDPSource(net.IPv4(192, 168, 2, 3), 12345))
	reg := &fakeRegistry{}
	handler := &fakeHandler{commonFn: func(ctx context.Context, req deviceactor.CommonRequest) (any, error) {
		return "pong", nil
	}}
	f := New(&fakeManager{infos: map[device.ID]device.Info{id: {ID: id}}, handler: handler}, reg, nil)

	ans, err := f.Dispatch(context.Background(), PingRequest{ID: id, SubRequest: deviceactor.DeviceInformationRequest{}})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if ans.DeviceMessage == nil || ans.DeviceMessage.Answer != "pong" {
		t.Fatalf("unexpected answer: %+v", ans)
	}
	if len(reg.published) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(reg.published))
	}
}

func TestDispatchPingDeviceErrorNotPublished(t *testing.T) {
	id := device.IDFromSource(device.NewUDPSource(net.IPv4(192, 168, 2, 4), 12345))
	reg := &fakeRegistry{}
	handler := &fakeHandler{commonFn: func(ctx context.Context, req deviceactor.CommonRequest) (any, error) {
		return nil, deviceactor.ErrNotImplemented
	}}
	f := New(&fakeManager{infos: map[device.ID]device.Info{id: {ID: id}}, handler: handler}, reg, nil)

	_, err := f.Dispatch(context.Background(), PingRequest{ID: id, SubRequest: deviceactor.DeviceInformationRequest{}})
	if err != deviceactor.ErrNotImplemented {
		t.Fatalf("expected ErrNotImplemented, got %v", err)
	}
	if len(reg.published) != 0 {
		t.Fatalf("expected no published events, got %d", len(reg.published))
	}
}

func TestDispatchPingUnroutableSubRequest(t *testing.T) {
	id := device.IDFromSource(device.NewUDPSource(net.IPv4(192, 168, 2, 5), 12345))
	f := New(&fakeManager{infos: map[device.ID]device.Info{id: {ID: id}}}, &fakeRegistry{}, nil)

	_, err := f.Dispatch(context.Background(), PingRequest{ID: id, SubRequest: "not a request"})
	if err != ErrUnroutable {
		t.Fatalf("expected ErrUnroutable, got %v", err)
	}
}
