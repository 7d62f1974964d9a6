// Package discovery implements the Discovery & Auto-Provisioning
// subsystem (C4): UDP broadcast discovery, serial port enumeration
// with baud-rate auto-detection, and the optional sibling bridge-service
// integration (spec §4.4). Every exported function returns plain
// device.Source values for the manager's AutoCreate to consume; nothing
// here touches the registry.
package discovery

import "time"

// BaudCandidates are tried high-to-low during auto-detect (spec §4.4).
var BaudCandidates = []uint32{2500000, 2000000, 1843200, 921600, 460800, 230400, 115200, 9600}

const (
	// networkDiscoveryWindow is how long the broadcast prober collects
	// responses before returning (spec §4.4, §5).
	networkDiscoveryWindow = 2 * time.Second

	// ss1DiscoveryPort is the well-known port SS1 devices answer
	// discovery probes on (spec §4.4, §6); they stream on ss1StreamPort.
	ss1DiscoveryPort = 30303

	// ss1StreamPort is the protocol-defined port emitted for every
	// parsed network-discovery response (spec §4.4: "emit a UDP source
	// with port 12345").
	ss1StreamPort = 12345

	// baudPreambleBudget bounds one candidate's baud-init preamble
	// (spec §4.4, §5); transport.DialSerial already enforces this
	// internally, this constant documents the same number for readers
	// of this package.
	baudPreambleBudget = 100 * time.Millisecond

	// baudRequestTimeout bounds a single device_information probe
	// request during baud auto-detect (spec §4.4, §5).
	baudRequestTimeout = 300 * time.Millisecond

	// baudCandidateBudget bounds the total time spent probing one baud
	// candidate (10 requests at up to 300ms each, spec §4.4, §5).
	baudCandidateBudget = 2 * time.Second

	// bridgeRequestTimeout bounds the sibling bridge-service lookup
	// (spec §4.4, §5).
	bridgeRequestTimeout = 500 * time.Millisecond
)
