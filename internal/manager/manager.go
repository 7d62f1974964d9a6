// Package manager implements the Device Manager (C6): the supervisory
// actor that owns the device registry, serializes every mutation of it
// through a single mailbox, and mediates create/delete/list/info,
// continuous-mode enable/disable, and device reconfiguration. Grounded
// on the teacher's scheduler.Scheduler (single-owner mutex+map) and on
// internal/deviceactor's mailbox-of-closures idiom, generalized from
// "one job type" to "one job per request kind" the way Scheduler
// generalizes a timer map into named task operations.
package manager

import (
	"context"
	"log/slog"

	"github.com/sonarhub/sonarfleetd/internal/continuous"
	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/deviceactor"
	"github.com/sonarhub/sonarfleetd/internal/sonarproto"
	"github.com/sonarhub/sonarfleetd/internal/wsregistry"
)

// managerMailboxDepth bounds inbound requests the same way the device
// actor's mailbox does (spec §5); the manager additionally runs the
// lazy stopped-device sweep ahead of every dispatch (spec §4.3).
const managerMailboxDepth = 32

// Options configures the manager's auto-provisioning behavior. It is
// read once at Create/AutoCreate time; there is no hot-reload.
type Options struct {
	NetworkDiscovery bool
	SerialDiscovery  bool
	SkipSerialPorts  []string
	BridgeBaseURL    string // empty disables the bridge integration
}

// record is the manager's private DeviceRecord (spec §3): held
// exclusively by the manager goroutine, never shared, so no field
// needs its own lock beyond Ping360Settings' own rw-lock (I5).
type record struct {
	id             device.ID
	source         device.Source
	kind           device.Kind // always concrete; Auto never lands here
	status         device.Status
	properties     device.Properties
	actor          *deviceactor.Actor
	client         *sonarproto.Client
	continuousTask *continuous.Task
}

func (r *record) info() device.Info {
	return device.Info{
		ID:         r.id,
		Source:     r.source,
		Status:     r.status,
		Kind:       r.kind,
		Properties: r.properties,
	}
}

type job struct {
	run   func() (any, error)
	reply chan result
}

type result struct {
	value any
	err   error
}

// Handler is the subset of *deviceactor.Actor the request façade needs
// to forward a Ping request directly to a device, once GetDeviceHandler
// has returned it (spec §4.7).
type Handler interface {
	Ping1D(ctx context.Context, req deviceactor.Ping1DRequest) (any, error)
	Ping360(ctx context.Context, req deviceactor.Ping360Request) (any, error)
	Common(ctx context.Context, req deviceactor.CommonRequest) (any, error)
}

// Manager is the Device Manager (C6) of spec §4.3.
type Manager struct {
	opts     Options
	registry *wsregistry.Registry
	logger   *slog.Logger

	records map[device.ID]*record
	mailbox chan job
}

// New constructs a manager and starts its mailbox goroutine. registry
// is the websocket fan-out the continuous-mode driver publishes
// streamed measurements to (spec §4.5); it is shared process-wide and
// constructed once by the caller (spec §9).
func New(opts Options, registry *wsregistry.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		opts:     opts,
		registry: registry,
		logger:   logger,
		records:  make(map[device.ID]*record),
		mailbox:  make(chan job, managerMailboxDepth),
	}
	go m.run()
	return m
}

func (m *Manager) run() {
	for j := range m.mailbox {
		m.sweepStopped()
		v, err := j.run()
		j.reply <- result{value: v, err: err}
	}
}

// sweepStopped demotes to Stopped any device whose actor task has
// terminated (spec §4.3: "the only mechanism for status demotion").
// Run at the head of every dispatch so any request sees the latest
// status (spec §9 Open Question: in-path sweep semantics preserved).
func (m *Manager) sweepStopped() {
	for _, rec := range m.records {
		if rec.status == device.StatusStopped {
			continue
		}
		select {
		case <-rec.actor.Done():
			rec.status = device.StatusStopped
		default:
		}
	}
}

// submit enqueues run on the manager goroutine and blocks for its
// result or ctx cancellation, mirroring deviceactor.Actor.submit.
func (m *Manager) submit(ctx context.Context, run func() (any, error)) (any, error) {
	j := job{run: run, reply: make(chan result, 1)}
	select {
	case m.mailbox <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-j.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown deletes every device (cancelling their actor and continuous
// tasks, closing their transports) and stops the mailbox goroutine.
// Intended for process shutdown only; the manager is unusable after.
func (m *Manager) Shutdown(ctx context.Context) {
	v, err := m.submit(ctx, func() (any, error) {
		for id, rec := range m.records {
			m.destroyLocked(ctx, rec)
			delete(m.records, id)
		}
		return nil, nil
	})
	_ = v
	if err != nil {
		m.logger.Warn("manager: shutdown sweep did not complete cleanly", "error", err)
	}
	close(m.mailbox)
}

func (m *Manager) destroyLocked(ctx context.Context, rec *record) {
	if rec.continuousTask != nil {
		rec.continuousTask.Stop()
		rec.continuousTask = nil
	}
	if err := rec.actor.Stop(ctx); err != nil {
		m.logger.Debug("manager: actor stop during teardown", "device_id", rec.id, "error", err)
	}
	if err := rec.client.Close(); err != nil {
		m.logger.Debug("manager: transport close during teardown", "device_id", rec.id, "error", err)
	}
}
