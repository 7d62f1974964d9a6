package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/deviceactor"
	"github.com/sonarhub/sonarfleetd/internal/discovery"
	"github.com/sonarhub/sonarfleetd/internal/sonarproto"
	"github.com/sonarhub/sonarfleetd/internal/transport"
)

// upgradeRetries and upgradeRetryDelay implement the Auto-kind probe
// retry policy of spec §4.3: "up to 3 retries spaced 100 ms apart —
// persistent failure is fatal to the create".
const (
	upgradeRetries    = 3
	upgradeRetryDelay = 100 * time.Millisecond
)

// Create opens a device's transport, identifies it (for KindAuto),
// caches its properties, registers it, and best-effort enables
// continuous mode (spec §4.3).
func (m *Manager) Create(ctx context.Context, source device.Source, kind device.Kind) (device.Info, error) {
	v, err := m.submit(ctx, func() (any, error) {
		return m.createLocked(ctx, source, kind)
	})
	if err != nil {
		return device.Info{}, err
	}
	return v.(device.Info), nil
}

// createLocked performs the actual work and must only ever be called
// from the manager goroutine (directly, or via Create's job) — never
// through submit from within another job, which would deadlock the
// mailbox.
func (m *Manager) createLocked(ctx context.Context, source device.Source, kind device.Kind) (device.Info, error) {
	id := device.IDFromSource(source)
	if _, exists := m.records[id]; exists {
		return device.Info{}, &ErrAlreadyExists{ID: id}
	}

	duplex, err := m.openTransport(ctx, source)
	if err != nil {
		return device.Info{}, err
	}

	client := sonarproto.New(duplex, m.logger)
	cleanup := func() {
		_ = client.Close()
	}

	startKind := kind
	if startKind == device.KindAuto {
		startKind = device.KindCommon
	}
	act := deviceactor.New(id, client, startKind, device.Common{}, m.logger)

	resolvedKind := startKind
	if kind == device.KindAuto {
		resolvedKind, err = m.probeKind(ctx, act)
		if err != nil {
			_ = act.Stop(ctx)
			cleanup()
			return device.Info{}, fmt.Errorf("manager: device identification failed: %w", err)
		}
	}

	common, err := fetchCommon(ctx, act)
	if err != nil {
		_ = act.Stop(ctx)
		cleanup()
		return device.Info{}, err
	}

	properties := m.seedProperties(ctx, act, resolvedKind, common, id)

	rec := &record{
		id:         id,
		source:     source,
		kind:       resolvedKind,
		status:     device.StatusRunning,
		properties: properties,
		actor:      act,
		client:     client,
	}
	m.records[id] = rec

	if err := m.enableContinuousLocked(ctx, rec); err != nil {
		m.logger.Debug("manager: best-effort continuous-mode enable at create failed", "device_id", id, "error", err)
	}

	return rec.info(), nil
}

// probeKind drives the Upgrade retry policy for a KindAuto create.
func (m *Manager) probeKind(ctx context.Context, act *deviceactor.Actor) (device.Kind, error) {
	var lastErr error
	for attempt := 0; attempt <= upgradeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(upgradeRetryDelay):
			case <-ctx.Done():
				return device.KindCommon, ctx.Err()
			}
		}
		result, err := act.Upgrade(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		switch result {
		case deviceactor.UpgradePing1D:
			return device.KindPing1D, nil
		case deviceactor.UpgradePing360:
			return device.KindPing360, nil
		default:
			return device.KindCommon, nil
		}
	}
	return device.KindCommon, lastErr
}

// fetchCommon fetches device_information + protocol_version (I4: set
// exactly once per device, before the first externally-visible
// list/info call).
func fetchCommon(ctx context.Context, act *deviceactor.Actor) (device.Common, error) {
	infoVal, err := act.Common(ctx, deviceactor.DeviceInformationRequest{})
	if err != nil {
		return device.Common{}, err
	}
	versionVal, err := act.Common(ctx, deviceactor.ProtocolVersionRequest{})
	if err != nil {
		return device.Common{}, err
	}
	return device.Common{
		DeviceInformation: infoVal.(sonarproto.DeviceInformation),
		ProtocolVersion:   versionVal.(sonarproto.ProtocolVersion),
	}, nil
}

// seedProperties builds DeviceProperties per kind. For Ping360 it also
// fires the one-shot DeviceData request spec §4.3 calls for before
// seeding the default scan config — failure here is logged, not fatal,
// since the default config values are fixed regardless of the
// response.
func (m *Manager) seedProperties(ctx context.Context, act *deviceactor.Actor, kind device.Kind, common device.Common, id device.ID) device.Properties {
	switch kind {
	case device.KindPing1D:
		return device.NewPing1DProperties(common)
	case device.KindPing360:
		seed := sonarproto.TransducerRequest{
			AngleGrad:       0,
			Transmit:        1,
			NumberOfSamples: 1200,
		}
		if _, err := act.Ping360(ctx, deviceactor.TransducerRequest{TransducerRequest: seed}); err != nil {
			m.logger.Warn("manager: ping360 seed DeviceData request failed", "device_id", id, "error", err)
		}
		return device.NewPing360Properties(common, device.DefaultPing360Config())
	default:
		return device.NewCommonProperties(common)
	}
}

func (m *Manager) openTransport(ctx context.Context, source device.Source) (transport.Duplex, error) {
	switch source.Kind {
	case device.SourceUDP:
		return transport.DialUDP(source.IP, source.Port)
	case device.SourceSerial:
		return transport.DialSerial(ctx, source.Path, source.Baudrate)
	default:
		return nil, &transport.SourceError{Details: "unrecognized source kind"}
	}
}

// AutoCreate aggregates sources from the bridge service, network
// broadcast discovery, and serial enumeration (in that order, spec
// §4.3), creates each, and always succeeds: per-source failures are
// logged, never returned (spec §7: "AutoCreate is best-effort").
func (m *Manager) AutoCreate(ctx context.Context) ([]device.Info, error) {
	v, err := m.submit(ctx, func() (any, error) {
		return m.autoCreateLocked(ctx), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]device.Info), nil
}

func (m *Manager) autoCreateLocked(ctx context.Context) []device.Info {
	var sources []device.Source
	skipSerial := append([]string(nil), m.opts.SkipSerialPorts...)

	if m.opts.BridgeBaseURL != "" {
		bridged, owned, err := discovery.Bridge(ctx, m.opts.BridgeBaseURL, m.logger)
		if err != nil {
			m.logger.Warn("manager: bridge discovery failed", "error", err)
		} else {
			sources = append(sources, bridged...)
			skipSerial = append(skipSerial, owned...)
		}
	}

	if m.opts.NetworkDiscovery {
		found, err := discovery.Network(ctx, m.logger)
		if err != nil {
			m.logger.Warn("manager: network discovery failed", "error", err)
		} else {
			sources = append(sources, found...)
		}
	}

	if m.opts.SerialDiscovery {
		found, err := discovery.Serial(ctx, skipSerial, m.logger)
		if err != nil {
			m.logger.Warn("manager: serial discovery failed", "error", err)
		} else {
			sources = append(sources, found...)
		}
	}

	created := make([]device.Info, 0, len(sources))
	for _, src := range sources {
		info, err := m.createLocked(ctx, src, device.KindAuto)
		if err != nil {
			m.logger.Warn("manager: auto-create failed for discovered source", "source", src.String(), "error", err)
			continue
		}
		created = append(created, info)
	}
	return created
}
