package httpserver

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/facade"
	"github.com/sonarhub/sonarfleetd/internal/manager"
)

func TestDecodeRequestCreate(t *testing.T) {
	req, err := decodeRequest([]byte(`{"type":"create","source":{"kind":"udp","ip":"192.168.2.1","port":12345},"kind":"ping360"}`))
	if err != nil {
		t.Fatalf("decodeRequest: %v", err)
	}
	create, ok := req.(facade.CreateRequest)
	if !ok {
		t.Fatalf("expected CreateRequest, got %T", req)
	}
	if create.Kind != device.KindPing360 {
		t.Fatalf("expected KindPing360, got %s", create.Kind)
	}
	if create.Source.Kind != device.SourceUDP || create.Source.Port != 12345 {
		t.Fatalf("unexpected source: %+v", create.Source)
	}
}

func TestDecodeRequestPingSubRequest(t *testing.T) {
	id := uuid.New()
	body := []byte(`{"type":"ping","id":"` + id.String() + `","sub_request":{"type":"motor_off"}}`)
	req, err := decodeRequest(body)
	if err != nil {
		t.Fatalf("decodeRequest: %v", err)
	}
	ping, ok := req.(facade.PingRequest)
	if !ok {
		t.Fatalf("expected PingRequest, got %T", req)
	}
	if ping.ID != device.ID(id) {
		t.Fatalf("unexpected id: %s", ping.ID)
	}
}

func TestDecodeRequestUnknownType(t *testing.T) {
	_, err := decodeRequest([]byte(`{"type":"nonsense"}`))
	if err == nil {
		t.Fatal("expected error for unknown request type")
	}
}

func TestEncodeErrorMapsDeviceNotExists(t *testing.T) {
	id := device.ID(uuid.New())
	we := encodeError(&manager.ErrDeviceNotExists{ID: id})
	if we.Kind != "device_not_exists" {
		t.Fatalf("expected device_not_exists, got %s", we.Kind)
	}
	if we.ID == nil || *we.ID != uuid.UUID(id) {
		t.Fatalf("expected id to round-trip, got %v", we.ID)
	}
}

func TestEncodeErrorFallsBackToInternal(t *testing.T) {
	we := encodeError(errors.New("boom"))
	if we.Kind != "internal" {
		t.Fatalf("expected internal, got %s", we.Kind)
	}
}

func TestStatusForErrorNotImplemented(t *testing.T) {
	if got := statusForError(manager.ErrNotImplemented); got != 501 {
		t.Fatalf("expected 501, got %d", got)
	}
}
