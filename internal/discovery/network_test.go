package discovery

import (
	"net"
	"testing"

	"github.com/sonarhub/sonarfleetd/internal/device"
)

func TestParseNetworkResponseOK(t *testing.T) {
	raw := "SONAR PING360\r\nBlue Robotics\r\nMAC Address:- 54-10-EC-79-7D-D1\r\nIP Address:- 192.168.000.197\r\n"

	got, err := ParseNetworkResponse([]byte(raw))
	if err != nil {
		t.Fatalf("ParseNetworkResponse: %v", err)
	}

	want := device.NewUDPSource(net.IPv4(192, 168, 0, 197), ss1StreamPort)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestParseNetworkResponseInvalid(t *testing.T) {
	_, err := ParseNetworkResponse([]byte("INVALID RESPONSE FORMAT"))
	if err != ErrUnparseableResponse {
		t.Fatalf("expected ErrUnparseableResponse, got %v", err)
	}
}

func TestParseNetworkResponseInvalidUTF8(t *testing.T) {
	raw := []byte{0xff, 0xfe, 0xfd}
	_, err := ParseNetworkResponse(raw)
	if err != ErrUnparseableResponse {
		t.Fatalf("expected ErrUnparseableResponse for invalid utf8, got %v", err)
	}
}

func TestParseNetworkResponseMissingTrailingCRLF(t *testing.T) {
	raw := "SONAR PING360\r\nBlue Robotics\r\nMAC Address:- 54-10-EC-79-7D-D1\r\nIP Address:- 192.168.0.197"
	_, err := ParseNetworkResponse([]byte(raw))
	if err != ErrUnparseableResponse {
		t.Fatalf("expected ErrUnparseableResponse for missing trailing CRLF, got %v", err)
	}
}
