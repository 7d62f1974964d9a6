package manager

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sonarhub/sonarfleetd/internal/continuous"
	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/deviceactor"
)

// wsPublisher adapts wsregistry.Registry to continuous.Publisher,
// serializing each streamed Event as the wire envelope described in
// spec §4.5 ("wrap it in a DeviceMessage event") before fanning it out
// filtered by device id.
type wsPublisher struct {
	registry publisher
}

// publisher is the subset of *wsregistry.Registry this package depends
// on, narrowed to an interface so manager tests can substitute a fake.
type publisher interface {
	Publish(text []byte, eventID *device.ID)
}

func (p wsPublisher) Publish(id device.ID, event continuous.Event) {
	p.registry.Publish(encodeContinuousEvent(id, event), &id)
}

type deviceMessageEnvelope struct {
	Type     string    `json:"type"`
	DeviceID device.ID `json:"device_id"`
	Message  any       `json:"message,omitempty"`
	Error    string    `json:"error,omitempty"`
}

func encodeContinuousEvent(id device.ID, event continuous.Event) []byte {
	env := deviceMessageEnvelope{DeviceID: id}
	if event.Err != nil {
		env.Type = "device_error"
		env.Error = event.Err.Error()
	} else {
		env.Type = "device_message"
		env.Message = event.Message
	}
	data, err := json.Marshal(env)
	if err != nil {
		return []byte(fmt.Sprintf(`{"type":"device_error","device_id":%q,"error":%q}`, id, err))
	}
	return data
}

// EnableContinuousMode transitions a Running device into ContinuousMode
// by spawning its continuous-mode driver (spec §4.5).
func (m *Manager) EnableContinuousMode(ctx context.Context, id device.ID) (device.Info, error) {
	v, err := m.submit(ctx, func() (any, error) {
		rec, ok := m.records[id]
		if !ok {
			return nil, &ErrDeviceNotExists{ID: id}
		}
		if rec.status != device.StatusRunning {
			return nil, &ErrDeviceStatusMismatch{ID: id, Status: rec.status}
		}
		if err := m.enableContinuousLocked(ctx, rec); err != nil {
			return nil, err
		}
		return rec.info(), nil
	})
	if err != nil {
		return device.Info{}, err
	}
	return v.(device.Info), nil
}

// enableContinuousLocked performs the state transition assuming the
// caller already verified status == Running (or is bypassing that
// check for the best-effort attempt made right after Create).
func (m *Manager) enableContinuousLocked(ctx context.Context, rec *record) error {
	var settings *device.Ping360Settings
	if rec.kind == device.KindPing360 {
		settings = rec.properties.Settings
	}
	task, err := continuous.Start(ctx, rec.id, rec.actor, rec.kind, rec.properties.Common.DeviceInformation, settings, wsPublisher{registry: m.registry}, m.logger)
	if err != nil {
		return err
	}
	rec.continuousTask = task
	rec.status = device.StatusContinuousMode
	return nil
}

// DisableContinuousMode cancels the continuous-mode driver and returns
// the device to Running, then runs the per-kind shutdown routine (spec
// §4.5: "Status update is done before the shutdown request so a
// failing shutdown does not leave the registry inconsistent").
func (m *Manager) DisableContinuousMode(ctx context.Context, id device.ID) (device.Info, error) {
	v, err := m.submit(ctx, func() (any, error) {
		rec, ok := m.records[id]
		if !ok {
			return nil, &ErrDeviceNotExists{ID: id}
		}
		if rec.status != device.StatusContinuousMode {
			return nil, &ErrDeviceStatusMismatch{ID: id, Status: rec.status}
		}

		task := rec.continuousTask
		rec.continuousTask = nil
		rec.status = device.StatusRunning

		if task != nil {
			task.Stop()
		}

		switch rec.kind {
		case device.KindPing1D:
			if _, err := rec.actor.Ping1D(ctx, deviceactor.ContinuousStopRequest{ProfileID: 0}); err != nil {
				m.logger.Warn("manager: ping1d continuous-stop shutdown routine failed", "device_id", id, "error", err)
			}
		case device.KindPing360:
			if _, err := rec.actor.Ping360(ctx, deviceactor.MotorOffRequest{}); err != nil {
				m.logger.Warn("manager: ping360 motor-off shutdown routine failed", "device_id", id, "error", err)
			}
		}

		return rec.info(), nil
	})
	if err != nil {
		return device.Info{}, err
	}
	return v.(device.Info), nil
}
