// Package device holds the data model shared by the device manager, the
// device actor, and the continuous-mode driver: source addressing,
// device identity, status, and cached properties (spec §3).
package device

import (
	"encoding/binary"
	"fmt"
	"net"
)

// SourceKind discriminates the two transports a device can be reached over.
type SourceKind uint8

const (
	// SourceUDP addresses a device over a connected UDP socket.
	SourceUDP SourceKind = iota
	// SourceSerial addresses a device over a serial port.
	SourceSerial
)

func (k SourceKind) String() string {
	switch k {
	case SourceUDP:
		return "udp"
	case SourceSerial:
		return "serial"
	default:
		return "unknown"
	}
}

// Source is the tagged-variant SourceSelection of spec §3: either a UDP
// endpoint or a serial port+baudrate. Only the fields matching Kind are
// meaningful; the zero value of the other variant is ignored by Equal
// and CanonicalBytes.
type Source struct {
	Kind SourceKind

	// UDP fields, valid when Kind == SourceUDP.
	IP   net.IP
	Port uint16

	// Serial fields, valid when Kind == SourceSerial.
	Path     string
	Baudrate uint32
}

// NewUDPSource builds a UDP source descriptor.
func NewUDPSource(ip net.IP, port uint16) Source {
	return Source{Kind: SourceUDP, IP: ip.To4(), Port: port}
}

// NewSerialSource builds a serial source descriptor.
func NewSerialSource(path string, baudrate uint32) Source {
	return Source{Kind: SourceSerial, Path: path, Baudrate: baudrate}
}

// Equal reports field equality, restricted to the active variant.
func (s Source) Equal(o Source) bool {
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case SourceUDP:
		return s.IP.Equal(o.IP) && s.Port == o.Port
	case SourceSerial:
		return s.Path == o.Path && s.Baudrate == o.Baudrate
	default:
		return false
	}
}

// CanonicalBytes returns a deterministic byte encoding of the source,
// used as the hash input for DeviceId (I1: every id hashes from its
// source). The encoding distinguishes the two variants by a leading
// tag byte so a UDP source and a serial source can never collide.
func (s Source) CanonicalBytes() []byte {
	switch s.Kind {
	case SourceUDP:
		ip4 := s.IP.To4()
		if ip4 == nil {
			ip4 = net.IPv4zero.To4()
		}
		buf := make([]byte, 1+4+2)
		buf[0] = byte(SourceUDP)
		copy(buf[1:5], ip4)
		binary.BigEndian.PutUint16(buf[5:7], s.Port)
		return buf
	case SourceSerial:
		buf := make([]byte, 1+4+len(s.Path))
		buf[0] = byte(SourceSerial)
		binary.BigEndian.PutUint32(buf[1:5], s.Baudrate)
		copy(buf[5:], s.Path)
		return buf
	default:
		return []byte{0xff}
	}
}

// String renders a human-readable source descriptor for logs.
func (s Source) String() string {
	switch s.Kind {
	case SourceUDP:
		return fmt.Sprintf("udp://%s:%d", s.IP, s.Port)
	case SourceSerial:
		return fmt.Sprintf("serial://%s@%d", s.Path, s.Baudrate)
	default:
		return "source(unknown)"
	}
}
