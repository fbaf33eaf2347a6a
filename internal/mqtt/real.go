package mqtt

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sweeney/keyless-relay/internal/logic"
)

// DefaultBufferSize is how many messages are held while the broker is away.
const DefaultBufferSize = 256

const publishTimeout = 5 * time.Second

// Options configures a RealPublisher.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	BufferSize int

	// OnCommand, if set, is called for every valid message on Topics.Commands.
	OnCommand CommandHandler

	Logger *slog.Logger
}

// RealPublisher publishes to an actual MQTT broker. Messages published while
// disconnected are buffered and replayed in order on reconnect.
type RealPublisher struct {
	client    paho.Client
	topics    Topics
	onCommand CommandHandler
	logger    *slog.Logger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher creates a publisher and starts connecting in the background.
// It never blocks on the broker; connection retries continue until Close.
func NewRealPublisher(opts Options) *RealPublisher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ClientID == "" {
		opts.ClientID = "keyless-relay"
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Topics == (Topics{}) {
		opts.Topics = NewTopics(DefaultPrefix)
	}

	p := &RealPublisher{
		topics:    opts.Topics,
		onCommand: opts.OnCommand,
		logger:    opts.Logger,
		buf:       newRingBuffer(opts.BufferSize),
	}

	will, _ := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})

	co := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(opts.Topics.System, string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.logger.Warn("mqtt connection lost", "error", err)
		})

	p.client = paho.NewClient(co)
	p.client.Connect()
	return p
}

// onConnect runs on its own goroutine after every (re)connect.
func (p *RealPublisher) onConnect(c paho.Client) {
	p.logger.Info("mqtt connected")

	if p.onCommand != nil {
		token := c.Subscribe(p.topics.Commands, 1, p.handleMessage)
		if !token.WaitTimeout(publishTimeout) {
			p.logger.Error("mqtt subscribe timeout", "topic", p.topics.Commands)
		} else if err := token.Error(); err != nil {
			p.logger.Error("mqtt subscribe failed", "topic", p.topics.Commands, "error", err)
		}
	}

	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	p.logger.Info("mqtt replaying buffered messages", "count", len(pending))
	for i, m := range pending {
		token := c.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			// Connection dropped mid-replay; keep the rest for next time.
			p.mu.Lock()
			for _, rest := range pending[i:] {
				p.buf.push(rest)
			}
			p.mu.Unlock()
			p.logger.Warn("mqtt replay interrupted", "remaining", len(pending)-i)
			return
		}
	}
}

func (p *RealPublisher) handleMessage(_ paho.Client, msg paho.Message) {
	if msg.Retained() {
		return
	}

	cmd, err := ParseActionCommand(msg.Payload())
	if err != nil {
		p.logger.Warn("ignoring mqtt command", "topic", msg.Topic(), "error", err)
		return
	}
	if err := p.onCommand(cmd); err != nil {
		p.logger.Warn("mqtt command rejected",
			"channel", cmd.Channel, "gesture", cmd.Gesture.String(), "action", cmd.Action.String(), "error", err)
		return
	}
	p.logger.Info("mqtt command applied",
		"channel", cmd.Channel, "gesture", cmd.Gesture.String(), "action", cmd.Action.String())
}

// send publishes or buffers a message. A buffered message is not an error.
func (p *RealPublisher) send(m bufferedMsg) error {
	if !p.client.IsConnectionOpen() {
		p.enqueue(m)
		return nil
	}

	token := p.client.Publish(m.topic, m.qos, m.retained, m.payload)
	if !token.WaitTimeout(publishTimeout) {
		p.enqueue(m)
		return fmt.Errorf("publish to %s: timeout", m.topic)
	}
	if err := token.Error(); err != nil {
		p.enqueue(m)
		return fmt.Errorf("publish to %s: %w", m.topic, err)
	}
	return nil
}

func (p *RealPublisher) enqueue(m bufferedMsg) {
	p.mu.Lock()
	first := p.buf.push(m)
	n := p.buf.len()
	p.mu.Unlock()
	if first {
		p.logger.Warn("mqtt buffer full, dropping oldest", "capacity", n)
	}
}

// Publish sends a gesture event to the MQTT broker.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	// QoS 0 (at-most-once), not retained
	return p.send(bufferedMsg{topic: p.topics.Events, payload: payload})
}

// PublishSystem sends a system lifecycle event to the MQTT broker.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}

	// QoS 1 (at-least-once) for lifecycle events
	return p.send(bufferedMsg{topic: p.topics.System, payload: payload, qos: 1, retained: event.Retained, latestOnly: true})
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}
