package manager

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sonarhub/sonarfleetd/internal/device"
)

// ss1DiscoveryPort is the UDP port SS1 hardware listens for discovery
// and configuration commands on (spec §4.4, §6).
const ss1DiscoveryPort = 30303

// ss1CommandTimeout bounds the SetSS1IP command write; the command is
// fire-and-forget UDP, so this only guards socket setup.
const ss1CommandTimeout = 2 * time.Second

// SetIP re-addresses the SS1 hardware underlying a UDP-sourced device
// and then deletes the local record — the caller is expected to
// re-create the device against the new address (spec §4.3
// ModifyDevice.SetIp).
func (m *Manager) SetIP(ctx context.Context, id device.ID, newIP net.IP) (device.Info, error) {
	v, err := m.submit(ctx, func() (any, error) {
		rec, ok := m.records[id]
		if !ok {
			return nil, &ErrDeviceNotExists{ID: id}
		}
		if rec.source.Kind != device.SourceUDP {
			return nil, ErrUnsupportedKind
		}

		if err := sendSetSS1IP(rec.source.IP, newIP); err != nil {
			return nil, err
		}

		delete(m.records, id)
		info := rec.info()
		m.destroyLocked(ctx, rec)
		return info, nil
	})
	if err != nil {
		return device.Info{}, err
	}
	return v.(device.Info), nil
}

// sendSetSS1IP writes the ASCII "SetSS1IP <dotted-ipv4>" command (spec
// §6) to the device's current address on the SS1 discovery/command
// port.
func sendSetSS1IP(currentIP net.IP, newIP net.IP) error {
	conn, err := net.DialTimeout("udp4", fmt.Sprintf("%s:%d", currentIP, ss1DiscoveryPort), ss1CommandTimeout)
	if err != nil {
		return fmt.Errorf("manager: dial SS1 command port: %w", err)
	}
	defer conn.Close()

	cmd := fmt.Sprintf("SetSS1IP %s", newIP.String())
	if _, err := conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("manager: write SetSS1IP command: %w", err)
	}
	return nil
}

// SetPing360Config updates the shared scan config a Ping360's
// continuous-mode driver reads every loop iteration (spec §4.5: this
// is how a runtime reconfiguration is detected and re-armed).
func (m *Manager) SetPing360Config(ctx context.Context, id device.ID, cfg device.Ping360Config) (device.Info, error) {
	v, err := m.submit(ctx, func() (any, error) {
		rec, ok := m.records[id]
		if !ok {
			return nil, &ErrDeviceNotExists{ID: id}
		}
		if rec.kind != device.KindPing360 {
			return nil, ErrUnsupportedKind
		}
		rec.properties.Settings.Set(cfg)
		return rec.info(), nil
	})
	if err != nil {
		return device.Info{}, err
	}
	return v.(device.Info), nil
}

// GetPing360Config reads the current scan config.
func (m *Manager) GetPing360Config(ctx context.Context, id device.ID) (device.Ping360Config, error) {
	v, err := m.submit(ctx, func() (any, error) {
		rec, ok := m.records[id]
		if !ok {
			return nil, &ErrDeviceNotExists{ID: id}
		}
		if rec.kind != device.KindPing360 {
			return nil, ErrUnsupportedKind
		}
		return rec.properties.Settings.Get(), nil
	})
	if err != nil {
		return device.Ping360Config{}, err
	}
	return v.(device.Ping360Config), nil
}
