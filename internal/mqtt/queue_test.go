package mqtt

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sweeney/keyless-relay/internal/logic"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gatedPublisher blocks every Publish until gate is closed, like a broker
// that has stopped acknowledging.
type gatedPublisher struct {
	gate    chan struct{}
	entered chan int

	mu     sync.Mutex
	events []logic.Event
	closed bool
}

func newGatedPublisher() *gatedPublisher {
	return &gatedPublisher{gate: make(chan struct{}), entered: make(chan int, 16)}
}

func (g *gatedPublisher) Publish(ev logic.Event) error {
	g.entered <- ev.Channel
	<-g.gate
	g.mu.Lock()
	g.events = append(g.events, ev)
	g.mu.Unlock()
	return nil
}

func (g *gatedPublisher) PublishSystem(SystemEvent) error { return nil }

func (g *gatedPublisher) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return nil
}

func (g *gatedPublisher) channels() []int {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]int, len(g.events))
	for i, ev := range g.events {
		out[i] = ev.Channel
	}
	return out
}

func TestQueuedPublisherDoesNotWaitForBroker(t *testing.T) {
	inner := newGatedPublisher()
	q := NewQueuedPublisher(inner, 8, quietLogger())

	for ch := 0; ch < 3; ch++ {
		if err := q.Publish(logic.Event{Channel: ch, Relay: logic.NoAction}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	if got := inner.channels(); len(got) != 0 {
		t.Fatalf("nothing should be delivered while the broker is stuck, got %v", got)
	}

	close(inner.gate)
	q.Close()

	got := inner.channels()
	if len(got) != 3 || got[0] != 0 || got[1] != 1 || got[2] != 2 {
		t.Errorf("delivered: got %v, want [0 1 2]", got)
	}
	if !inner.closed {
		t.Error("wrapped publisher not closed")
	}
}

func TestQueuedPublisherDropsWhenFull(t *testing.T) {
	inner := newGatedPublisher()
	q := NewQueuedPublisher(inner, 1, quietLogger())

	q.Publish(logic.Event{Channel: 0})
	<-inner.entered // worker is now stuck on channel 0

	q.Publish(logic.Event{Channel: 1}) // queued
	if err := q.Publish(logic.Event{Channel: 2}); err != nil {
		t.Errorf("a full queue drops, it does not fail: %v", err)
	}
	if q.Pending() != 1 {
		t.Errorf("Pending: got %d, want 1", q.Pending())
	}

	close(inner.gate)
	q.Close()
	got := inner.channels()
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("delivered: got %v, want [0 1]", got)
	}
}

func TestQueuedPublisherDrainsOnClose(t *testing.T) {
	inner := NewFakePublisher()
	q := NewQueuedPublisher(inner, 0, quietLogger())

	q.PublishSystem(SystemEvent{Event: "STARTUP"})
	q.Publish(logic.Event{Channel: 3, Gesture: logic.GestureDouble, Relay: 1})
	q.PublishSystem(SystemEvent{Event: "SHUTDOWN", Reason: "SIGTERM"})
	if err := q.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if names := inner.SystemEventNames(); len(names) != 2 || names[0] != "STARTUP" || names[1] != "SHUTDOWN" {
		t.Errorf("system events: got %v", names)
	}
	if len(inner.Events) != 1 || inner.Events[0].Relay != 1 {
		t.Errorf("events: got %+v", inner.Events)
	}
	if !inner.Closed {
		t.Error("wrapped publisher not closed")
	}
}

func TestQueuedPublisherRejectsAfterClose(t *testing.T) {
	q := NewQueuedPublisher(NewFakePublisher(), 4, quietLogger())
	q.Close()

	if err := q.Publish(logic.Event{}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Publish after Close: got %v, want ErrQueueClosed", err)
	}
	if err := q.PublishSystem(SystemEvent{Event: "HEARTBEAT"}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("PublishSystem after Close: got %v, want ErrQueueClosed", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestQueuedPublisherConnectionStatus(t *testing.T) {
	inner := NewFakePublisher()
	inner.Connected = true
	q := NewQueuedPublisher(inner, 4, quietLogger())
	defer q.Close()

	if !q.IsConnected() {
		t.Error("expected connected from wrapped publisher")
	}
	bare := NewQueuedPublisher(newGatedPublisher(), 1, quietLogger())
	defer bare.Close()
	if bare.IsConnected() {
		t.Error("publisher without status should report disconnected")
	}
}
