// Package sonarproto stands in for the external sonar wire-protocol
// library that spec.md §1 deliberately places out of scope: "the
// transport-level sonar wire protocol itself (framing, CRC, message
// IDs) — treated as an opaque library providing typed request methods
// and a broadcast stream of decoded messages per device." Nothing in
// the device manager, device actor, or continuous-mode driver reaches
// past this package's Client interface into wire bytes.
package sonarproto

import "fmt"

// Message ids. The concrete values only need to be stable within this
// module — they are not a real vendor's protocol numbering.
const (
	IDDeviceInformation uint16 = 4
	IDProtocolVersion   uint16 = 5
	IDProfile           uint16 = 1220 // Ping1D streaming payload
	IDContinuousStart   uint16 = 1221
	IDContinuousStop    uint16 = 1222
	IDDeviceData        uint16 = 2300 // Ping360 single-shot scan (Transducer request/response)
	IDAutoTransmit      uint16 = 2311
	IDAutoDeviceData    uint16 = 2312 // Ping360 firmware auto-transmit push
	IDMotorOff          uint16 = 2313
	IDTransducer        uint16 = 2314
)

// DeviceInformation is the common device identity payload, fetched once
// at device creation (I4) and on every Upgrade.
type DeviceInformation struct {
	DeviceType           uint8
	DeviceRevision       uint8
	FirmwareVersionMajor uint8
	FirmwareVersionMinor uint8
	FirmwareVersionPatch uint8
}

// ProtocolVersion is the wire protocol version the device speaks.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// Profile is the Ping1D streaming measurement (glossary: "Profile").
type Profile struct {
	Distance        uint32
	Confidence      uint8
	TransmitDuration uint16
	PingNumber      uint32
	ScanStart       uint32
	ScanLength      uint32
	GainSetting     uint32
	Data            []byte
}

// DeviceData is the Ping360 single-shot per-angle scan response
// (glossary: "DeviceData / Transducer request").
type DeviceData struct {
	Mode              uint8
	GainSetting       uint8
	AngleGrad         uint16 // 0..399, 400 = one revolution
	TransmitDuration  uint16
	SamplePeriod      uint16
	TransmitFrequency uint16
	NumberOfSamples   uint16
	Data              []byte
}

// AutoDeviceData is the Ping360 firmware auto-transmit push frame
// (glossary: "AutoTransmit").
type AutoDeviceData struct {
	DeviceData
}

// TransducerRequest drives one angular step of the software-stepped
// Ping360 sweep (spec §4.5, software strategy).
type TransducerRequest struct {
	Mode              uint8
	GainSetting       uint8
	AngleGrad         uint16
	TransmitDuration  uint16
	SamplePeriod      uint16
	TransmitFrequency uint16
	NumberOfSamples   uint16
	Transmit          uint8
	Reserved          uint8
}

// AutoTransmitConfig arms the Ping360 firmware's autonomous sweep.
type AutoTransmitConfig struct {
	Mode              uint8
	GainSetting       uint8
	TransmitDuration  uint16
	SamplePeriod      uint16
	TransmitFrequency uint16
	NumberOfSamples   uint16
	StartAngle        uint16
	StopAngle         uint16
	NumSteps          uint8
	Delay             uint16
}

// Message is any decoded inbound frame handed to a subscriber.
type Message interface {
	MessageID() uint16
}

func (Profile) MessageID() uint16         { return IDProfile }
func (DeviceData) MessageID() uint16      { return IDDeviceData }
func (AutoDeviceData) MessageID() uint16  { return IDAutoDeviceData }

// ErrNotSupported names a request whose message does not apply to the
// underlying device (distinct from a wire/transport failure — see
// ErrDevice). No Client method in this package returns it; the device
// actor reports kind mismatches with deviceactor.ErrNotSupported.
var ErrNotSupported = fmt.Errorf("sonarproto: request not supported by this device")

// ErrDevice wraps a parse/CRC/timeout failure reported by the wire
// protocol itself (spec §7 "Device-error"), propagated verbatim to the
// caller rather than demoting device status.
type ErrDevice struct {
	Err error
}

func (e *ErrDevice) Error() string { return fmt.Sprintf("device error: %v", e.Err) }
func (e *ErrDevice) Unwrap() error { return e.Err }

func errShortPayload(msgID uint16, got int) error {
	return fmt.Errorf("message %d: payload too short (%d bytes)", msgID, got)
}
