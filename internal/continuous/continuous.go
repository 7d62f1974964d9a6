// Package continuous implements the continuous-mode streaming driver
// (C5): the three per-kind strategies spawned by EnableContinuousMode
// and torn down by DisableContinuousMode.
package continuous

import (
	"context"
	"errors"
	"log/slog"

	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/deviceactor"
	"github.com/sonarhub/sonarfleetd/internal/sonarproto"
)

// errSubscriberFailed reports a closed subscription channel. Frames
// dropped from a full subscription channel are not detected and do not
// end the stream.
var errSubscriberFailed = errors.New("continuous: subscriber stream failed")

// Event is one outcome pushed to the websocket registry: either a
// decoded device message or a terminal stream error.
type Event struct {
	DeviceID device.ID
	Message  sonarproto.Message
	Err      error
}

// Publisher is the websocket fan-out sink a strategy pushes Events to.
// Defined here rather than imported from wsregistry so this package
// never needs to know about subscriber filtering or websockets.
type Publisher interface {
	Publish(id device.ID, event Event)
}

// subscriberActor is the subset of *deviceactor.Actor a strategy needs.
// Accepted as an interface so strategies are testable without a real
// actor goroutine.
type subscriberActor interface {
	Ping1D(ctx context.Context, req deviceactor.Ping1DRequest) (any, error)
	Ping360(ctx context.Context, req deviceactor.Ping360Request) (any, error)
	GetSubscriber(ctx context.Context) (<-chan sonarproto.Message, func(), error)
}

// Task is a running continuous-mode strategy. Stop cancels it and
// blocks until its goroutine has exited.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Start acquires a subscriber from actor and spawns the strategy
// matching kind (spec §4.5 step 2-3). firmware is consulted only for
// Ping360, to choose between the firmware and software strategies.
func Start(
	ctx context.Context,
	id device.ID,
	actor subscriberActor,
	kind device.Kind,
	firmware sonarproto.DeviceInformation,
	settings *device.Ping360Settings,
	pub Publisher,
	logger *slog.Logger,
) (*Task, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sub, unsub, err := actor.GetSubscriber(ctx)
	if err != nil {
		return nil, err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	switch kind {
	case device.KindPing1D:
		go runPing1D(taskCtx, id, actor, sub, unsub, pub, logger, done)
	case device.KindPing360:
		if usesFirmwareAutoTransmit(firmware) {
			go runPing360Firmware(taskCtx, id, actor, sub, unsub, settings, pub, logger, done)
		} else {
			go runPing360Software(taskCtx, id, actor, unsub, settings, pub, logger, done)
		}
	default:
		cancel()
		unsub()
		close(done)
		return nil, errors.New("continuous: unsupported device kind")
	}

	return &Task{cancel: cancel, done: done}, nil
}

// usesFirmwareAutoTransmit reports the firmware-strategy gate of spec
// §4.5: "firmware major ≥ 3 AND minor ≥ 3".
func usesFirmwareAutoTransmit(info sonarproto.DeviceInformation) bool {
	return info.FirmwareVersionMajor >= 3 && info.FirmwareVersionMinor >= 3
}

func runPing1D(
	ctx context.Context,
	id device.ID,
	actor subscriberActor,
	sub <-chan sonarproto.Message,
	unsub func(),
	pub Publisher,
	logger *slog.Logger,
	done chan struct{},
) {
	defer close(done)
	defer unsub()

	if _, err := actor.Ping1D(ctx, deviceactor.ContinuousStartRequest{ProfileID: profileID}); err != nil {
		logger.Warn("continuous: ping1d startup routine failed", "device_id", id, "error", err)
		pub.Publish(id, Event{DeviceID: id, Err: err})
		return
	}

	for {
		select {
		case msg, ok := <-sub:
			if !ok {
				pub.Publish(id, Event{DeviceID: id, Err: errSubscriberFailed})
				return
			}
			if msg.MessageID() == sonarproto.IDProfile {
				pub.Publish(id, Event{DeviceID: id, Message: msg})
			}
		case <-ctx.Done():
			return
		}
	}
}

func runPing360Firmware(
	ctx context.Context,
	id device.ID,
	actor subscriberActor,
	sub <-chan sonarproto.Message,
	unsub func(),
	settings *device.Ping360Settings,
	pub Publisher,
	logger *slog.Logger,
	done chan struct{},
) {
	defer close(done)
	defer unsub()

	for {
		initial := settings.Get()

		if _, err := actor.Ping360(ctx, deviceactor.MotorOffRequest{}); err != nil {
			pub.Publish(id, Event{DeviceID: id, Err: err})
			return
		}
		cfg := sonarproto.AutoTransmitConfig{
			Mode:              initial.Mode,
			GainSetting:       initial.GainSetting,
			TransmitDuration:  initial.TransmitDuration,
			SamplePeriod:      initial.SamplePeriod,
			TransmitFrequency: initial.TransmitFrequency,
			NumberOfSamples:   initial.NumberOfSamples,
			StartAngle:        initial.StartAngle,
			StopAngle:         initial.StopAngle,
			NumSteps:          initial.NumSteps,
			Delay:             initial.Delay,
		}
		if _, err := actor.Ping360(ctx, deviceactor.AutoTransmitRequest{AutoTransmitConfig: cfg}); err != nil {
			pub.Publish(id, Event{DeviceID: id, Err: err})
			return
		}

		for {
			select {
			case msg, ok := <-sub:
				if !ok {
					pub.Publish(id, Event{DeviceID: id, Err: errSubscriberFailed})
					return
				}
				if add, ok := msg.(sonarproto.AutoDeviceData); ok {
					pub.Publish(id, Event{DeviceID: id, Message: add})
				}
			case <-ctx.Done():
				return
			}

			if !settings.Get().Equal(initial) {
				break
			}
		}
	}
}

func runPing360Software(
	ctx context.Context,
	id device.ID,
	actor subscriberActor,
	unsub func(),
	settings *device.Ping360Settings,
	pub Publisher,
	logger *slog.Logger,
	done chan struct{},
) {
	defer close(done)
	defer unsub()

	for {
		initial := settings.Get()
		cur := initial.StartAngle
		var dir int8 = 1

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !settings.Get().Equal(initial) {
				break
			}

			req := sonarproto.TransducerRequest{
				Mode:              initial.Mode,
				GainSetting:       initial.GainSetting,
				AngleGrad:         cur,
				TransmitDuration:  initial.TransmitDuration,
				SamplePeriod:      initial.SamplePeriod,
				TransmitFrequency: initial.TransmitFrequency,
				NumberOfSamples:   initial.NumberOfSamples,
				Transmit:          1,
				Reserved:          0,
			}
			v, err := actor.Ping360(ctx, deviceactor.TransducerRequest{TransducerRequest: req})
			if err != nil {
				pub.Publish(id, Event{DeviceID: id, Err: err})
				return
			}
			pub.Publish(id, Event{DeviceID: id, Message: v.(sonarproto.DeviceData)})

			step := uint16(initial.NumSteps)
			if step == 0 {
				step = 1
			}
			cur, dir = stepAngle(initial, cur, dir, step)
		}
	}
}

// profileID is the Ping1D continuous-start profile identifier. The
// protocol this module stands in for does not define how a profile id
// is chosen per device (spec.md §1 scopes the wire protocol out); a
// single-profile device always uses 0.
const profileID uint16 = 0
