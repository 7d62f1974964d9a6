package device

import (
	"sync"

	"github.com/sonarhub/sonarfleetd/internal/sonarproto"
)

// Common is the device identity fetched once at creation and refreshed
// on every Upgrade (spec §4.2, §4.3).
type Common struct {
	DeviceInformation sonarproto.DeviceInformation
	ProtocolVersion   sonarproto.ProtocolVersion
}

// Ping360Config is the scan parameter block. Equality is used by the
// continuous-mode driver to detect runtime reconfiguration (spec §4.5).
type Ping360Config struct {
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

// Equal reports whether two configs are identical. Ping360Config has no
// pointer or slice fields so ordinary struct equality already captures
// this; the method exists so call sites read as a deliberate comparison
// rather than an incidental one.
func (c Ping360Config) Equal(o Ping360Config) bool { return c == o }

// FullCircle reports the protocol invariant denoting a complete 360°
// sweep: start_angle==0 && stop_angle==399, 400 steps per revolution.
func (c Ping360Config) FullCircle() bool { return c.StartAngle == 0 && c.StopAngle == 399 }

// DefaultPing360Config is the scan config seeded at device creation
// (spec §4.3 Create).
func DefaultPing360Config() Ping360Config {
	return Ping360Config{
		NumberOfSamples: 1200,
		StartAngle:      0,
		StopAngle:       399,
		NumSteps:        1,
		Delay:           0,
	}
}

// Ping360Settings is the reader-writer-lock guarded mutable scan config
// shared between the manager (writer, via ModifyDevice.SetPing360Config)
// and the continuous-mode driver (reader, re-reading every loop
// iteration) — the only post-creation mutable field of a device's
// properties (spec I5).
type Ping360Settings struct {
	mu  sync.RWMutex
	cfg Ping360Config
}

func NewPing360Settings(initial Ping360Config) *Ping360Settings {
	return &Ping360Settings{cfg: initial}
}

func (s *Ping360Settings) Get() Ping360Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Ping360Settings) Set(cfg Ping360Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Properties is the DeviceProperties variant of spec §3: cached
// metadata fetched once at creation, discriminated by Kind. Settings is
// non-nil only for KindPing360; every other kind carries only Common.
type Properties struct {
	Kind     Kind
	Common   Common
	Settings *Ping360Settings
}

func NewCommonProperties(common Common) Properties {
	return Properties{Kind: KindCommon, Common: common}
}

func NewPing1DProperties(common Common) Properties {
	return Properties{Kind: KindPing1D, Common: common}
}

func NewPing360Properties(common Common, initial Ping360Config) Properties {
	return Properties{Kind: KindPing360, Common: common, Settings: NewPing360Settings(initial)}
}

// Info is the external, manager-clone view of a device record (spec
// §3 DeviceRecord: "external views receive a DeviceInfo clone"). The
// Settings pointer inside Properties is shared with the live record so
// GetPing360Config always reflects the current value even though Info
// itself is a snapshot of ID/Source/Status/Kind.
type Info struct {
	ID         ID
	Source     Source
	Status     Status
	Kind       Kind
	Properties Properties
}
