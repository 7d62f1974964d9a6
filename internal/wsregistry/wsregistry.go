// Package wsregistry implements the websocket fan-out registry (C7): a
// process-wide set of subscribers, each with an optional regex filter
// and an optional device-id filter, fed by the manager and the
// continuous-mode driver. Grounded on the subscriber-channel shape of
// the teacher's homeassistant.WSClient (one outbound channel per
// consumer, non-blocking send with a dropped-message warning) fanned
// out to many consumers instead of read by one.
package wsregistry

import (
	"log/slog"
	"regexp"
	"sync"

	"github.com/google/uuid"
)

// outboxDepth bounds each subscriber's outbound queue. Publish is
// non-blocking (spec §4.6): a full outbox drops the message for that
// subscriber only, never for the others.
const outboxDepth = 64

// DefaultFilter is the regex every subscriber gets when the caller
// (the websocket edge) omits the "filter" query parameter (spec §6).
const DefaultFilter = ".*"

// Subscriber is one registered websocket listener.
type Subscriber struct {
	id       uint64
	outbox   chan []byte
	re       *regexp.Regexp
	deviceID *uuid.UUID
}

// Messages returns the subscriber's outbound channel. internal/httpserver
// drains it and writes frames to the socket.
func (s *Subscriber) Messages() <-chan []byte { return s.outbox }

// Registry is the C7 fan-out registry, constructed once at process
// start and shared by handle (spec §9: "no dynamic lifetime
// management").
type Registry struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscriber
	logger *slog.Logger
}

// New constructs an empty registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{subs: make(map[uint64]*Subscriber), logger: logger}
}

// Subscribe registers a new listener. filterPattern is compiled as a
// regex against the serialized event text; an empty pattern falls back
// to DefaultFilter. deviceID, if non-nil, restricts delivery to events
// carrying that exact device id (spec §6 "device_number").
func (r *Registry) Subscribe(filterPattern string, deviceID *uuid.UUID) (*Subscriber, error) {
	if filterPattern == "" {
		filterPattern = DefaultFilter
	}
	re, err := regexp.Compile(filterPattern)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub := &Subscriber{
		id:       r.nextID,
		outbox:   make(chan []byte, outboxDepth),
		re:       re,
		deviceID: deviceID,
	}
	r.subs[sub.id] = sub
	return sub, nil
}

// Unsubscribe removes a listener and closes its outbox.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[sub.id]; ok {
		delete(r.subs, sub.id)
		close(sub.outbox)
	}
}

// Publish delivers text to every subscriber whose device-id filter and
// regex both match (spec §4.6). eventID is the optional device id
// carried by the event; a nil eventID only reaches subscribers with no
// device-id filter of their own. An empty registry drops silently.
func (r *Registry) Publish(text []byte, eventID *uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.subs) == 0 {
		return
	}

	for _, sub := range r.subs {
		if sub.deviceID != nil && (eventID == nil || *sub.deviceID != *eventID) {
			continue
		}
		if !sub.re.Match(text) {
			continue
		}
		select {
		case sub.outbox <- text:
		default:
			r.logger.Warn("wsregistry: subscriber outbox full, dropping event", "subscriber", sub.id)
		}
	}
}

// Count reports the number of active subscribers, used for diagnostics.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
