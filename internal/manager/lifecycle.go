package manager

import (
	"context"

	"github.com/sonarhub/sonarfleetd/internal/device"
)

// Delete removes a device, cancelling its actor and continuous tasks
// and closing its transport (spec §4.3).
func (m *Manager) Delete(ctx context.Context, id device.ID) (device.Info, error) {
	v, err := m.submit(ctx, func() (any, error) {
		rec, ok := m.records[id]
		if !ok {
			return nil, &ErrDeviceNotExists{ID: id}
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

// List returns a snapshot of every registered device. ErrNoDevices if
// the registry is empty (spec §4.3).
func (m *Manager) List(ctx context.Context) ([]device.Info, error) {
	v, err := m.submit(ctx, func() (any, error) {
		if len(m.records) == 0 {
			return nil, ErrNoDevices
		}
		infos := make([]device.Info, 0, len(m.records))
		for _, rec := range m.records {
			infos = append(infos, rec.info())
		}
		return infos, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]device.Info), nil
}

// Info returns a single device's snapshot.
func (m *Manager) Info(ctx context.Context, id device.ID) (device.Info, error) {
	v, err := m.submit(ctx, func() (any, error) {
		rec, ok := m.records[id]
		if !ok {
			return nil, &ErrDeviceNotExists{ID: id}
		}
		return rec.info(), nil
	})
	if err != nil {
		return device.Info{}, err
	}
	return v.(device.Info), nil
}

// GetDeviceHandler returns a handle onto the device's actor mailbox,
// used by the request façade to forward Ping requests directly (spec
// §4.3, §4.7). Only devices in Running or ContinuousMode expose a
// handler; anything else answers ErrDeviceStatusMismatch.
func (m *Manager) GetDeviceHandler(ctx context.Context, id device.ID) (Handler, error) {
	v, err := m.submit(ctx, func() (any, error) {
		rec, ok := m.records[id]
		if !ok {
			return nil, &ErrDeviceNotExists{ID: id}
		}
		if rec.status != device.StatusRunning && rec.status != device.StatusContinuousMode {
			return nil, &ErrDeviceStatusMismatch{ID: id, Status: rec.status}
		}
		return rec.actor, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Handler), nil
}
