package mqtt

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sweeney/keyless-relay/internal/logic"
)

// DefaultQueueSize is how many messages may wait for the publisher goroutine.
const DefaultQueueSize = 64

// drainTimeout bounds how long Close waits for queued messages.
const drainTimeout = 3 * time.Second

// ErrQueueClosed is returned by a QueuedPublisher after Close.
var ErrQueueClosed = errors.New("publish queue closed")

type queued struct {
	event  *logic.Event
	system *SystemEvent
}

// QueuedPublisher hands messages to a background goroutine so the poll loop
// never waits on the broker. When the queue is full the new message is
// dropped. Errors from the wrapped publisher are logged.
type QueuedPublisher struct {
	inner  Publisher
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan queued
	done   chan struct{}
}

// NewQueuedPublisher starts the goroutine that drains into inner.
func NewQueuedPublisher(inner Publisher, size int, logger *slog.Logger) *QueuedPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &QueuedPublisher{
		inner:  inner,
		logger: logger,
		queue:  make(chan queued, size),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *QueuedPublisher) run() {
	defer close(q.done)
	for m := range q.queue {
		if m.event != nil {
			if err := q.inner.Publish(*m.event); err != nil {
				q.logger.Warn("publish error", "channel", m.event.Channel, "error", err)
			}
			continue
		}
		if err := q.inner.PublishSystem(*m.system); err != nil {
			q.logger.Warn("system publish error", "event", m.system.Event, "error", err)
		}
	}
}

func (q *QueuedPublisher) enqueue(m queued) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.queue <- m:
	default:
		q.logger.Warn("publish queue full, dropping message", "capacity", cap(q.queue))
	}
	return nil
}

// Publish queues a gesture event.
func (q *QueuedPublisher) Publish(event logic.Event) error {
	return q.enqueue(queued{event: &event})
}

// PublishSystem queues a system event.
func (q *QueuedPublisher) PublishSystem(event SystemEvent) error {
	return q.enqueue(queued{system: &event})
}

// IsConnected reports the wrapped publisher's connection state, or false if
// it does not track one.
func (q *QueuedPublisher) IsConnected() bool {
	if cs, ok := q.inner.(ConnectionStatus); ok {
		return cs.IsConnected()
	}
	return false
}

// Pending returns the number of messages waiting to be sent.
func (q *QueuedPublisher) Pending() int {
	return len(q.queue)
}

// Close stops accepting messages, waits up to drainTimeout for the queue to
// empty, then closes the wrapped publisher.
func (q *QueuedPublisher) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.queue)
	q.mu.Unlock()

	select {
	case <-q.done:
	case <-time.After(drainTimeout):
		q.logger.Warn("publish queue not drained before close", "pending", len(q.queue))
	}
	return q.inner.Close()
}
