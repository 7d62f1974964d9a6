package wsregistry

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPublishRegexFilter(t *testing.T) {
	r := New(nil)
	sub, err := r.Subscribe(`"kind":"profile"`, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	r.Publish([]byte(`{"kind":"profile","distance":10}`), nil)
	r.Publish([]byte(`{"kind":"scan"}`), nil)

	select {
	case msg := <-sub.Messages():
		if string(msg) != `{"kind":"profile","distance":10}` {
			t.Fatalf("unexpected delivery: %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected matching event, got none")
	}

	select {
	case msg := <-sub.Messages():
		t.Fatalf("unexpected second delivery: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDeviceIDFilter(t *testing.T) {
	r := New(nil)
	target := uuid.New()
	other := uuid.New()

	sub, err := r.Subscribe(DefaultFilter, &target)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	r.Publish([]byte("event for other device"), &other)
	r.Publish([]byte("event for target device"), &target)
	r.Publish([]byte("event with no device id"), nil)

	select {
	case msg := <-sub.Messages():
		if string(msg) != "event for target device" {
			t.Fatalf("unexpected delivery: %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the target device's event")
	}

	select {
	case msg := <-sub.Messages():
		t.Fatalf("unexpected extra delivery: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeClosesOutbox(t *testing.T) {
	r := New(nil)
	sub, err := r.Subscribe(DefaultFilter, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	r.Unsubscribe(sub)

	if r.Count() != 0 {
		t.Fatalf("expected empty registry after unsubscribe, got %d", r.Count())
	}

	_, ok := <-sub.Messages()
	if ok {
		t.Fatal("expected outbox to be closed after unsubscribe")
	}
}

func TestPublishEmptyRegistryDoesNotPanic(t *testing.T) {
	r := New(nil)
	r.Publish([]byte("nobody home"), nil)
}

func TestPublishFullOutboxDropsForThatSubscriberOnly(t *testing.T) {
	r := New(nil)
	slow, err := r.Subscribe(DefaultFilter, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	fast, err := r.Subscribe(DefaultFilter, nil)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for i := 0; i < outboxDepth+10; i++ {
		r.Publish([]byte("x"), nil)
	}

	drained := 0
	for {
		select {
		case <-fast.Messages():
			drained++
			continue
		default:
		}
		break
	}
	if drained != outboxDepth {
		t.Fatalf("expected exactly %d buffered messages, got %d", outboxDepth, drained)
	}

	// slow's outbox is equally full; Publish must not have blocked or
	// panicked delivering to it even though fast was never drained
	// concurrently with publish.
	if len(slow.Messages()) != outboxDepth {
		t.Fatalf("expected slow subscriber's outbox to be full, got %d", len(slow.Messages()))
	}
}
