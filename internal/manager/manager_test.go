package manager

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/sonarhub/sonarfleetd/internal/device"
)

// fakeFrameMagic mirrors sonarproto's internal frame sync word; the
// comment on frameMagic notes this stand-in protocol "only needs to be
// internally consistent", so a test fixture is free to hardcode it.
const fakeFrameMagic uint16 = 0x4252

const (
	idDeviceInformation uint16 = 4
	idProtocolVersion   uint16 = 5
)

// fakeDevice answers DeviceInformation and ProtocolVersion requests
// over a real loopback UDP socket, standing in for a physical sonar
// device the way bridge_test.go's httptest server stands in for the
// bridge service.
type fakeDevice struct {
	conn *net.UDPConn
}

func newFakeDevice(t *testing.T) *fakeDevice {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	d := &fakeDevice{conn: conn}
	go d.serve()
	return d
}

func (d *fakeDevice) port(t *testing.T) uint16 {
	t.Helper()
	return uint16(d.conn.LocalAddr().(*net.UDPAddr).Port)
}

func (d *fakeDevice) serve() {
	buf := make([]byte, 2048)
	for {
		n, addr, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		msgID, tag, _, ok := decodeFakeFrame(buf[:n])
		if !ok {
			continue
		}
		var payload []byte
		switch msgID {
		case idDeviceInformation:
			payload = []byte{0, 1, 1, 0, 0} // DeviceType=common, rev=1, fw 1.0.0
		case idProtocolVersion:
			payload = []byte{1, 0, 0}
		default:
			continue
		}
		_, _ = d.conn.WriteToUDP(encodeFakeFrame(msgID, tag, payload), addr)
	}
}

func (d *fakeDevice) close() { d.conn.Close() }

func encodeFakeFrame(msgID uint16, tag uint32, payload []byte) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, fakeFrameMagic)
	binary.Write(buf, binary.BigEndian, msgID)
	binary.Write(buf, binary.BigEndian, tag)
	binary.Write(buf, binary.BigEndian, uint16(len(payload)))
	buf.Write(payload)
	var sum uint16
	for _, b := range payload {
		sum += uint16(b)
	}
	binary.Write(buf, binary.BigEndian, sum)
	return buf.Bytes()
}

func decodeFakeFrame(data []byte) (msgID uint16, tag uint32, payload []byte, ok bool) {
	if len(data) < 10 {
		return 0, 0, nil, false
	}
	r := bytes.NewReader(data)
	var magic, length uint16
	binary.Read(r, binary.BigEndian, &magic)
	if magic != fakeFrameMagic {
		return 0, 0, nil, false
	}
	binary.Read(r, binary.BigEndian, &msgID)
	binary.Read(r, binary.BigEndian, &tag)
	binary.Read(r, binary.BigEndian, &length)
	payload = make([]byte, length)
	io.ReadFull(r, payload)
	return msgID, tag, payload, true
}

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := New(Options{}, nil, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m
}

func TestCreateCommonDeviceRunning(t *testing.T) {
	dev := newFakeDevice(t)
	defer dev.close()

	m := testManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := device.NewUDPSource(net.IPv4(127, 0, 0, 1), dev.port(t))
	info, err := m.Create(ctx, source, device.KindCommon)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if info.Status != device.StatusRunning {
		t.Fatalf("expected StatusRunning, got %s", info.Status)
	}
	if info.Kind != device.KindCommon {
		t.Fatalf("expected KindCommon, got %s", info.Kind)
	}
}

func TestCreateDuplicateSourceIsAlreadyExists(t *testing.T) {
	dev := newFakeDevice(t)
	defer dev.close()

	m := testManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := device.NewUDPSource(net.IPv4(127, 0, 0, 1), dev.port(t))
	if _, err := m.Create(ctx, source, device.KindCommon); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := m.Create(ctx, source, device.KindCommon)
	var alreadyExists *ErrAlreadyExists
	if !errors.As(err, &alreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestDeleteAndListAndInfo(t *testing.T) {
	dev := newFakeDevice(t)
	defer dev.close()

	m := testManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := device.NewUDPSource(net.IPv4(127, 0, 0, 1), dev.port(t))
	info, err := m.Create(ctx, source, device.KindCommon)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := m.Info(ctx, info.ID); err != nil {
		t.Fatalf("Info: %v", err)
	}

	list, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 device, got %d", len(list))
	}

	if _, err := m.Delete(ctx, info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := m.List(ctx); err != ErrNoDevices {
		t.Fatalf("expected ErrNoDevices after delete, got %v", err)
	}
}

func TestGetDeviceHandlerReturnsActor(t *testing.T) {
	dev := newFakeDevice(t)
	defer dev.close()

	m := testManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := device.NewUDPSource(net.IPv4(127, 0, 0, 1), dev.port(t))
	info, err := m.Create(ctx, source, device.KindCommon)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	handler, err := m.GetDeviceHandler(ctx, info.ID)
	if err != nil {
		t.Fatalf("GetDeviceHandler: %v", err)
	}
	if handler == nil {
		t.Fatal("expected non-nil handler")
	}
}

func TestEnableContinuousModeUnsupportedForCommonKind(t *testing.T) {
	dev := newFakeDevice(t)
	defer dev.close()

	m := testManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	source := device.NewUDPSource(net.IPv4(127, 0, 0, 1), dev.port(t))
	info, err := m.Create(ctx, source, device.KindCommon)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	// createLocked already attempted best-effort enable and logged the
	// failure (GetSubscriber answers deviceactor.ErrNotSupported for a
	// Common device); status stays Running (spec §4.3).
	if info.Status != device.StatusRunning {
		t.Fatalf("expected StatusRunning, got %s", info.Status)
	}

	if _, err := m.EnableContinuousMode(ctx, info.ID); err == nil {
		t.Fatal("expected error enabling continuous mode on a Common device")
	}
}
