// Package deviceactor implements the per-device actor (C3): one
// goroutine owns a device's wire client exclusively and serializes
// every operation against it through a bounded mailbox, matching I3
// (the actor is the sole writer onto its transport).
package deviceactor

import (
	"context"
	"log/slog"

	"github.com/sonarhub/sonarfleetd/internal/device"
	"github.com/sonarhub/sonarfleetd/internal/sonarproto"
)

// mailboxDepth is the bounded mailbox size of spec §5: a full mailbox
// makes the sender await rather than drop or error.
const mailboxDepth = 10

// wireClient is the subset of *sonarproto.Client the actor depends on,
// accepted as an interface so actor tests can substitute a fake device
// without a real transport.
type wireClient interface {
	DeviceInformation(ctx context.Context) (sonarproto.DeviceInformation, error)
	ProtocolVersion(ctx context.Context) (sonarproto.ProtocolVersion, error)
	ContinuousStart(ctx context.Context, profileID uint16) error
	ContinuousStop(ctx context.Context, profileID uint16) error
	Transducer(ctx context.Context, req sonarproto.TransducerRequest) (sonarproto.DeviceData, error)
	AutoTransmit(ctx context.Context, cfg sonarproto.AutoTransmitConfig) error
	MotorOff(ctx context.Context) error
	Subscribe() (<-chan sonarproto.Message, func())
	Close() error
}

// variant is the actor's own kind discriminant, including the
// transient Null placeholder used only inside Upgrade (spec §4.2) —
// never observable outside this package.
type variant uint8

const (
	variantCommon variant = iota
	variantPing1D
	variantPing360
	variantNull
)

// job is one (request, reply-slot) mailbox entry. run executes on the
// actor goroutine with exclusive access to its state.
type job struct {
	run   func() (any, error)
	reply chan result
}

type result struct {
	value any
	err   error
}

// Actor is the device actor of spec §4.2.
type Actor struct {
	id     device.ID
	client wireClient
	logger *slog.Logger

	kind   variant
	common device.Common

	mailbox chan job
	done    chan struct{}
}

// New starts an actor goroutine for a device already known to be of
// concrete kind (Common, Ping1D, or Ping360 — never Auto). Auto devices
// are created as Common and immediately driven through Upgrade by the
// manager (spec §4.3 Create).
func New(id device.ID, client wireClient, kind device.Kind, common device.Common, logger *slog.Logger) *Actor {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Actor{
		id:      id,
		client:  client,
		logger:  logger,
		kind:    variantFromDeviceKind(kind),
		common:  common,
		mailbox: make(chan job, mailboxDepth),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func variantFromDeviceKind(k device.Kind) variant {
	switch k {
	case device.KindPing1D:
		return variantPing1D
	case device.KindPing360:
		return variantPing360
	default:
		return variantCommon
	}
}

// Done reports actor termination, used by the manager's lazy health
// sweep to demote a device to Stopped (spec §4.3).
func (a *Actor) Done() <-chan struct{} { return a.done }

func (a *Actor) run() {
	defer close(a.done)
	for j := range a.mailbox {
		value, err := j.run()
		j.reply <- result{value: value, err: err}
		if value == stopSentinel {
			return
		}
	}
}

// stopSentinel is returned by the Stop job's run func so the loop
// recognizes termination without a separate control channel — the
// mailbox remains the single source of ordering (spec §4.2: "Requests
// are served strictly sequentially in mailbox order").
var stopSentinel = struct{}{}

// submit enqueues a job and blocks for its reply or ctx cancellation.
// Enqueue itself blocks when the mailbox is full, matching the
// backpressure semantics of spec §5.
func (a *Actor) submit(ctx context.Context, run func() (any, error)) (any, error) {
	j := job{run: run, reply: make(chan result, 1)}
	select {
	case a.mailbox <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-a.done:
		return nil, ErrStopped
	}

	select {
	case r := <-j.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ping1D dispatches a Ping1D-only request (spec §4.2).
func (a *Actor) Ping1D(ctx context.Context, req Ping1DRequest) (any, error) {
	return a.submit(ctx, func() (any, error) {
		if a.kind != variantPing1D {
			return nil, ErrNotSupported
		}
		switch r := req.(type) {
		case ContinuousStartRequest:
			return nil, a.client.ContinuousStart(ctx, r.ProfileID)
		case ContinuousStopRequest:
			return nil, a.client.ContinuousStop(ctx, r.ProfileID)
		default:
			return nil, ErrNotSupported
		}
	})
}

// Ping360 dispatches a Ping360-only request (spec §4.2).
func (a *Actor) Ping360(ctx context.Context, req Ping360Request) (any, error) {
	return a.submit(ctx, func() (any, error) {
		if a.kind != variantPing360 {
			return nil, ErrNotSupported
		}
		switch r := req.(type) {
		case TransducerRequest:
			return a.client.Transducer(ctx, r.TransducerRequest)
		case AutoTransmitRequest:
			return nil, a.client.AutoTransmit(ctx, r.AutoTransmitConfig)
		case MotorOffRequest:
			return nil, a.client.MotorOff(ctx)
		default:
			return nil, ErrNotSupported
		}
	})
}

// Common dispatches a request valid against any concrete kind (spec
// §4.2); unimplemented operations answer ErrNotImplemented rather than
// ErrNotSupported, since the mismatch here is feature coverage, not
// device kind.
func (a *Actor) Common(ctx context.Context, req CommonRequest) (any, error) {
	return a.submit(ctx, func() (any, error) {
		if a.kind == variantNull {
			return nil, ErrNotSupported
		}
		switch req.(type) {
		case DeviceInformationRequest:
			info, err := a.client.DeviceInformation(ctx)
			if err == nil {
				a.common.DeviceInformation = info
			}
			return info, err
		case ProtocolVersionRequest:
			version, err := a.client.ProtocolVersion(ctx)
			if err == nil {
				a.common.ProtocolVersion = version
			}
			return version, err
		default:
			return nil, ErrNotImplemented
		}
	})
}

// GetSubscriber returns a fresh receiver onto the device's push-message
// stream, valid only for Ping1D and Ping360 (spec §4.2).
func (a *Actor) GetSubscriber(ctx context.Context) (<-chan sonarproto.Message, func(), error) {
	v, err := a.submit(ctx, func() (any, error) {
		if a.kind != variantPing1D && a.kind != variantPing360 {
			return nil, ErrNotSupported
		}
		ch, unsub := a.client.Subscribe()
		return subscription{ch: ch, unsub: unsub}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	sub := v.(subscription)
	return sub.ch, sub.unsub, nil
}

type subscription struct {
	ch    <-chan sonarproto.Message
	unsub func()
}

// Upgrade reads the remote device_information and, if it names a kind
// different from the actor's current one, replaces the variant while
// preserving the shared Common carrier (spec §4.2).
func (a *Actor) Upgrade(ctx context.Context) (UpgradeResult, error) {
	v, err := a.submit(ctx, func() (any, error) {
		prior := a.kind
		a.kind = variantNull
		info, err := a.client.DeviceInformation(ctx)
		if err != nil {
			a.kind = prior
			return nil, err
		}
		a.common.DeviceInformation = info

		resolved := device.KindFromDeviceType(info.DeviceType)
		newKind := variantFromDeviceKind(resolved)
		a.kind = newKind

		switch resolved {
		case device.KindPing1D:
			return UpgradePing1D, nil
		case device.KindPing360:
			return UpgradePing360, nil
		default:
			return UpgradeUnknown, nil
		}
	})
	if err != nil {
		return UpgradeUnknown, err
	}
	return v.(UpgradeResult), nil
}

// Stop terminates the actor loop. Mailbox drain is not guaranteed
// (spec §4.2): jobs enqueued concurrently with Stop may never run.
func (a *Actor) Stop(ctx context.Context) error {
	_, err := a.submit(ctx, func() (any, error) {
		return stopSentinel, nil
	})
	return err
}
