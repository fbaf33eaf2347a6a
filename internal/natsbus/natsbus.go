// Package natsbus fans gesture events out to a NATS subject hierarchy.
package natsbus

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/sweeney/keyless-relay/internal/logic"
	"github.com/sweeney/keyless-relay/internal/mqtt"
)

// DefaultSubject is the subject root for gesture events.
const DefaultSubject = "keyless.relay.events"

// Publisher publishes gesture events as JSON on <root>.<channel>.<gesture>,
// so subscribers can filter with wildcards such as "keyless.relay.events.*.long".
// The payload is the same document sent to MQTT.
type Publisher struct {
	conn *nats.Conn
	root string
}

// NewPublisher connects to url. The connection reconnects forever in the
// background; publishes made while disconnected are buffered by the client.
func NewPublisher(url, root string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if root == "" {
		root = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("keyless-relay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &Publisher{conn: nc, root: root}, nil
}

// Subject returns the subject an event is published on.
func (p *Publisher) Subject(event logic.Event) string {
	return p.root + "." + strconv.Itoa(event.Channel) + "." + event.Gesture.String()
}

// Publish sends the event.
func (p *Publisher) Publish(event logic.Event) error {
	data, err := mqtt.FormatPayload(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(event), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Flush waits until the server has processed everything published so far.
func (p *Publisher) Flush() error {
	return p.conn.Flush()
}

// Close closes the connection.
func (p *Publisher) Close() error {
	p.conn.Close()
	return nil
}
