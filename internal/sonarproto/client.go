package sonarproto

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sonarhub/sonarfleetd/internal/transport"
)

// pendingReply carries a decoded response frame (or its decode error)
// back to the goroutine awaiting it.
type pendingReply struct {
	msgID   uint16
	payload []byte
	err     error
}

// Client is the concrete wire client (C2) for one device's transport.
// It serializes writes, correlates requests to replies by tag, and fans
// unsolicited push frames (Profile, AutoDeviceData) out to subscribers.
// Grounded on the request/reply-pending-map plus event-channel shape of
// the teacher's Home Assistant websocket client.
type Client struct {
	duplex transport.Duplex
	logger *slog.Logger

	writeMu sync.Mutex
	nextTag uint32

	pendingMu sync.Mutex
	pending   map[uint32]chan pendingReply

	subMu     sync.Mutex
	subs      map[int]chan Message
	nextSubID int

	closeOnce sync.Once
	closed    chan struct{}
}

// New wraps duplex in a Client and starts its read loop. The caller
// retains ownership of duplex's lifetime via Close.
func New(duplex transport.Duplex, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		duplex:  duplex,
		logger:  logger,
		pending: make(map[uint32]chan pendingReply),
		subs:    make(map[int]chan Message),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close terminates the read loop and closes the underlying transport.
// Any outstanding requests observe a closed-channel error; subscribers
// observe their channel close.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.duplex.Close()
		close(c.closed)

		c.pendingMu.Lock()
		for tag, ch := range c.pending {
			close(ch)
			delete(c.pending, tag)
		}
		c.pendingMu.Unlock()

		c.subMu.Lock()
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		c.subMu.Unlock()
	})
	return err
}

// Subscribe returns a fresh receiver onto the device's inbound push
// stream (spec §4.2 GetSubscriber) and a function to cancel it. The
// returned channel is closed when the client is closed or unsub is
// called; there is no buffering guarantee beyond the channel's own
// depth. When a subscriber's channel is full, the oldest queued frame
// is dropped to make room; the drop is not reported to the subscriber.
func (c *Client) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, 32)
	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch
	c.subMu.Unlock()

	unsub := func() {
		c.subMu.Lock()
		if existing, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(existing)
		}
		c.subMu.Unlock()
	}
	return ch, unsub
}

func (c *Client) readLoop() {
	for {
		msgID, tag, payload, err := readFrame(c.duplex)
		if err != nil {
			c.failPending(err)
			c.closeSubs()
			return
		}

		if tag != 0 {
			c.deliverPending(tag, pendingReply{msgID: msgID, payload: payload})
			continue
		}

		msg, err := decodePush(msgID, payload)
		if err != nil {
			c.logger.Warn("sonarproto: dropping unparseable push frame", "msg_id", msgID, "error", err)
			continue
		}
		c.publish(msg)
	}
}

func decodePush(msgID uint16, payload []byte) (Message, error) {
	switch msgID {
	case IDProfile:
		return decodeProfile(payload)
	case IDAutoDeviceData:
		dd, err := decodeDeviceData(payload)
		return AutoDeviceData{DeviceData: dd}, err
	default:
		return nil, fmt.Errorf("unknown push message id %d", msgID)
	}
}

func (c *Client) publish(msg Message) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- msg:
		default:
			// Drop-oldest for slow consumers per spec §5: make room for
			// the newest frame rather than block the read loop.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

func (c *Client) deliverPending(tag uint32, reply pendingReply) {
	c.pendingMu.Lock()
	ch, ok := c.pending[tag]
	if ok {
		delete(c.pending, tag)
	}
	c.pendingMu.Unlock()
	if ok {
		ch <- reply
		close(ch)
	}
}

func (c *Client) failPending(err error) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for tag, ch := range c.pending {
		ch <- pendingReply{err: err}
		close(ch)
		delete(c.pending, tag)
	}
}

func (c *Client) closeSubs() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

// request sends one frame and blocks for its correlated reply, honoring
// ctx cancellation. This is the only path that writes to the duplex,
// keeping it the exclusive writer (I3).
func (c *Client) request(ctx context.Context, msgID uint16, payload []byte) ([]byte, error) {
	c.writeMu.Lock()
	c.nextTag++
	tag := c.nextTag
	replyCh := make(chan pendingReply, 1)
	c.pendingMu.Lock()
	c.pending[tag] = replyCh
	c.pendingMu.Unlock()

	err := writeFrame(c.duplex, msgID, tag, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.pendingMu.Lock()
		delete(c.pending, tag)
		c.pendingMu.Unlock()
		return nil, &ErrDevice{Err: err}
	}

	select {
	case reply, ok := <-replyCh:
		if !ok {
			return nil, &ErrDevice{Err: fmt.Errorf("connection closed awaiting reply to message %d", msgID)}
		}
		if reply.err != nil {
			return nil, &ErrDevice{Err: reply.err}
		}
		return reply.payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, &ErrDevice{Err: fmt.Errorf("client closed awaiting reply to message %d", msgID)}
	}
}

// DeviceInformation fetches the device's identity block. Implemented
// once here (not per-kind) because every concrete client in this Go
// port shares a structural Client type rather than three disjoint wire
// clients — spec §9 notes that in a structural-interface language this
// collapses to one impl, which is exactly what Go's interfaces are.
func (c *Client) DeviceInformation(ctx context.Context) (DeviceInformation, error) {
	payload, err := c.request(ctx, IDDeviceInformation, nil)
	if err != nil {
		return DeviceInformation{}, err
	}
	return decodeDeviceInformation(payload)
}

// ProtocolVersion fetches the wire protocol version the device speaks.
func (c *Client) ProtocolVersion(ctx context.Context) (ProtocolVersion, error) {
	payload, err := c.request(ctx, IDProtocolVersion, nil)
	if err != nil {
		return ProtocolVersion{}, err
	}
	return decodeProtocolVersion(payload)
}

// ContinuousStart is the Ping1D streaming startup routine (spec §4.5).
func (c *Client) ContinuousStart(ctx context.Context, profileID uint16) error {
	_, err := c.request(ctx, IDContinuousStart, encodeDeviceID(profileID))
	return err
}

// ContinuousStop is the Ping1D streaming shutdown routine (spec §4.5).
func (c *Client) ContinuousStop(ctx context.Context, profileID uint16) error {
	_, err := c.request(ctx, IDContinuousStop, encodeDeviceID(profileID))
	return err
}

// Transducer issues one single-shot angular scan on a Ping360 (software
// stepping strategy, spec §4.5).
func (c *Client) Transducer(ctx context.Context, req TransducerRequest) (DeviceData, error) {
	payload, err := c.request(ctx, IDTransducer, encodeTransducerRequest(req))
	if err != nil {
		return DeviceData{}, err
	}
	return decodeDeviceData(payload)
}

// DeviceDataOnce issues one single-shot Transducer request and returns
// its DeviceData reply; it is a thin wrapper over Transducer.
func (c *Client) DeviceDataOnce(ctx context.Context, req TransducerRequest) (DeviceData, error) {
	return c.Transducer(ctx, req)
}

// AutoTransmit arms the Ping360 firmware auto-transmit sweep (firmware
// strategy, spec §4.5).
func (c *Client) AutoTransmit(ctx context.Context, cfg AutoTransmitConfig) error {
	_, err := c.request(ctx, IDAutoTransmit, encodeAutoTransmitConfig(cfg))
	return err
}

// MotorOff stops the Ping360 motor (spec §4.5). The firmware streaming
// strategy sends it before re-arming; the software stepping strategy
// does not.
func (c *Client) MotorOff(ctx context.Context) error {
	_, err := c.request(ctx, IDMotorOff, nil)
	return err
}
