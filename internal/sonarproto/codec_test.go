package sonarproto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestDecodeDeviceInformation(t *testing.T) {
	want := DeviceInformation{DeviceType: 2, DeviceRevision: 1, FirmwareVersionMajor: 3, FirmwareVersionMinor: 2, FirmwareVersionPatch: 1}
	payload := encodeFixed(want)

	got, err := decodeDeviceInformation(payload)
	if err != nil {
		t.Fatalf("decodeDeviceInformation: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestDecodeProtocolVersion(t *testing.T) {
	want := ProtocolVersion{Major: 1, Minor: 0, Patch: 5}
	got, err := decodeProtocolVersion(encodeFixed(want))
	if err != nil {
		t.Fatalf("decodeProtocolVersion: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func encodeProfileForTest(f profileFixed, data []byte) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, f)
	binary.Write(buf, binary.BigEndian, uint16(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func TestDecodeProfile(t *testing.T) {
	f := profileFixed{Distance: 1234, Confidence: 90, TransmitDuration: 42, PingNumber: 7, ScanStart: 0, ScanLength: 1000, GainSetting: 1}
	data := []byte{1, 2, 3, 4, 5}
	payload := encodeProfileForTest(f, data)

	got, err := decodeProfile(payload)
	if err != nil {
		t.Fatalf("decodeProfile: %v", err)
	}
	if got.Distance != f.Distance || got.PingNumber != f.PingNumber || !bytes.Equal(got.Data, data) {
		t.Errorf("got %+v", got)
	}
}

func TestDecodeProfile_ShortPayload(t *testing.T) {
	_, err := decodeProfile([]byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error for short payload")
	}
	var devErr *ErrDevice
	if !errors.As(err, &devErr) {
		t.Errorf("error = %v, want *ErrDevice", err)
	}
}

func TestDecodeProfile_DataLenExceedsPayload(t *testing.T) {
	f := profileFixed{}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, f)
	binary.Write(buf, binary.BigEndian, uint16(100))
	buf.Write([]byte{1, 2})

	_, err := decodeProfile(buf.Bytes())
	if err == nil {
		t.Fatal("expected error when declared data length exceeds payload")
	}
}

func TestDecodeDeviceData_RoundTrip(t *testing.T) {
	f := deviceDataFixed{Mode: 1, GainSetting: 2, AngleGrad: 200, TransmitDuration: 5, SamplePeriod: 80, TransmitFrequency: 740, NumberOfSamples: 4}
	data := []byte{9, 9, 9, 9}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, f)
	binary.Write(buf, binary.BigEndian, uint16(len(data)))
	buf.Write(data)

	got, err := decodeDeviceData(buf.Bytes())
	if err != nil {
		t.Fatalf("decodeDeviceData: %v", err)
	}
	if got.AngleGrad != 200 || !bytes.Equal(got.Data, data) {
		t.Errorf("got %+v", got)
	}
}

func TestEncodeTransducerRequest_FixedWidth(t *testing.T) {
	req := TransducerRequest{Mode: 1, GainSetting: 2, AngleGrad: 399, TransmitDuration: 5, SamplePeriod: 80, TransmitFrequency: 740, NumberOfSamples: 200, Transmit: 1}
	payload := encodeTransducerRequest(req)
	if len(payload) != 1+1+2+2+2+2+2+1+1 {
		t.Errorf("payload length = %d", len(payload))
	}
}

func TestEncodeAutoTransmitConfig_FixedWidth(t *testing.T) {
	cfg := AutoTransmitConfig{Mode: 1, StartAngle: 0, StopAngle: 399, NumSteps: 1}
	payload := encodeAutoTransmitConfig(cfg)
	if len(payload) != 1+1+2+2+2+2+2+2+1+2 {
		t.Errorf("payload length = %d", len(payload))
	}
}
