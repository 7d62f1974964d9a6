package sonarproto

import (
	"bytes"
	"encoding/binary"
)

func encodeFixed(v any) []byte {
	buf := &bytes.Buffer{}
	// All message structs here use only fixed-width numeric fields, so
	// binary.Write's reflection-based struct encoder applies directly.
	_ = binary.Write(buf, binary.BigEndian, v)
	return buf.Bytes()
}

func decodeFixed(payload []byte, v any) error {
	return binary.Read(bytes.NewReader(payload), binary.BigEndian, v)
}

func encodeDeviceID(profileID uint16) []byte {
	return encodeFixed(profileID)
}

func decodeDeviceInformation(payload []byte) (DeviceInformation, error) {
	var v DeviceInformation
	err := decodeFixed(payload, &v)
	return v, err
}

func decodeProtocolVersion(payload []byte) (ProtocolVersion, error) {
	var v ProtocolVersion
	err := decodeFixed(payload, &v)
	return v, err
}

// profileFixed mirrors Profile without its variable-length Data field.
type profileFixed struct {
	Distance         uint32
	Confidence       uint8
	TransmitDuration uint16
	PingNumber       uint32
	ScanStart        uint32
	ScanLength       uint32
	GainSetting      uint32
}

func decodeProfile(payload []byte) (Profile, error) {
	const fixedLen = 4 + 1 + 2 + 4 + 4 + 4 + 4
	if len(payload) < fixedLen+2 {
		return Profile{}, &ErrDevice{Err: errShortPayload(IDProfile, len(payload))}
	}
	var f profileFixed
	if err := decodeFixed(payload[:fixedLen], &f); err != nil {
		return Profile{}, err
	}
	dataLen := binary.BigEndian.Uint16(payload[fixedLen : fixedLen+2])
	data := payload[fixedLen+2:]
	if int(dataLen) > len(data) {
		return Profile{}, &ErrDevice{Err: errShortPayload(IDProfile, len(payload))}
	}
	return Profile{
		Distance:         f.Distance,
		Confidence:       f.Confidence,
		TransmitDuration: f.TransmitDuration,
		PingNumber:       f.PingNumber,
		ScanStart:        f.ScanStart,
		ScanLength:       f.ScanLength,
		GainSetting:      f.GainSetting,
		Data:             data[:dataLen],
	}, nil
}

// deviceDataFixed mirrors DeviceData without its variable-length Data field.
type deviceDataFixed struct {
	Mode              uint8
	GainSetting       uint8
	AngleGrad         uint16
	TransmitDuration  uint16
	SamplePeriod      uint16
	TransmitFrequency uint16
	NumberOfSamples   uint16
}

func decodeDeviceData(payload []byte) (DeviceData, error) {
	const fixedLen = 1 + 1 + 2 + 2 + 2 + 2 + 2
	if len(payload) < fixedLen+2 {
		return DeviceData{}, &ErrDevice{Err: errShortPayload(IDDeviceData, len(payload))}
	}
	var f deviceDataFixed
	if err := decodeFixed(payload[:fixedLen], &f); err != nil {
		return DeviceData{}, err
	}
	dataLen := binary.BigEndian.Uint16(payload[fixedLen : fixedLen+2])
	data := payload[fixedLen+2:]
	if int(dataLen) > len(data) {
		return DeviceData{}, &ErrDevice{Err: errShortPayload(IDDeviceData, len(payload))}
	}
	return DeviceData{
		Mode:              f.Mode,
		GainSetting:       f.GainSetting,
		AngleGrad:         f.AngleGrad,
		TransmitDuration:  f.TransmitDuration,
		SamplePeriod:      f.SamplePeriod,
		TransmitFrequency: f.TransmitFrequency,
		NumberOfSamples:   f.NumberOfSamples,
		Data:              data[:dataLen],
	}, nil
}

func encodeTransducerRequest(req TransducerRequest) []byte {
	return encodeFixed(req)
}

func encodeAutoTransmitConfig(cfg AutoTransmitConfig) []byte {
	return encodeFixed(cfg)
}
