package discovery

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sonarhub/sonarfleetd/internal/device"
)

func TestBridgeParsesSensors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1.0/sensors" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"port": "/dev/ttyUSB0", "driver_status": {"udp_port": 9092}},
			{"port": "/dev/ttyUSB1", "driver_status": {}}
		]`))
	}))
	defer srv.Close()

	sources, owned, err := Bridge(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Bridge: %v", err)
	}

	if len(sources) != 1 {
		t.Fatalf("expected 1 udp source, got %d", len(sources))
	}
	want := device.NewUDPSource(net.IPv4(127, 0, 0, 1), 9092)
	if !sources[0].Equal(want) {
		t.Fatalf("got %s, want %s", sources[0], want)
	}

	if len(owned) != 2 {
		t.Fatalf("expected 2 owned serial ports, got %d: %v", len(owned), owned)
	}
}
