// Package mqtt provides MQTT publishing with abstraction for testing.
package mqtt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sweeney/keyless-relay/internal/logic"
)

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "home/keyless-relay"

// Topics holds the topic names derived from a prefix.
type Topics struct {
	Events   string // gesture events
	System   string // lifecycle events, retained
	Commands string // action table updates
}

// NewTopics derives the topic set from prefix. A trailing slash is ignored.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Topics{
		Events:   prefix + "/events",
		System:   prefix + "/system",
		Commands: prefix + "/actions/set",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends a gesture event to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event logic.Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload for a gesture event.
type Payload struct {
	Gesture GesturePayload `json:"gesture"`
}

// GesturePayload contains the gesture event details.
// Relay is null when the gesture has no action.
type GesturePayload struct {
	ID         string `json:"id,omitempty"`
	Timestamp  string `json:"timestamp"`
	Channel    int    `json:"channel"`
	Gesture    string `json:"gesture"`
	DurationMs int64  `json:"duration_ms"`
	Relay      *int   `json:"relay"`
}

// FormatPayload creates the JSON payload for a gesture event.
func FormatPayload(event logic.Event) ([]byte, error) {
	p := GesturePayload{
		ID:         event.ID,
		Timestamp:  event.Timestamp.UTC().Format(time.RFC3339Nano),
		Channel:    event.Channel,
		Gesture:    event.Gesture.String(),
		DurationMs: event.Duration.Milliseconds(),
	}
	if event.Relay != logic.NoAction {
		r := int(event.Relay)
		p.Relay = &r
	}
	return json.Marshal(Payload{Gesture: p})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// ErrBadCommand is returned for command payloads that cannot be parsed.
var ErrBadCommand = errors.New("bad action command")

// ActionCommand is the payload accepted on the command topic:
//
//	{"channel": 0, "gesture": "short", "action": 1}
//	{"channel": 2, "gesture": "double", "action": "none"}
type ActionCommand struct {
	Channel int
	Gesture logic.Gesture
	Action  logic.Action
}

type rawCommand struct {
	Channel *int            `json:"channel"`
	Gesture string          `json:"gesture"`
	Action  json.RawMessage `json:"action"`
}

// ParseActionCommand decodes a command payload. The action may be a relay
// number, a numeric string, "none", or null. Range checks against the relay
// count are left to the caller.
func ParseActionCommand(data []byte) (ActionCommand, error) {
	var raw rawCommand
	if err := json.Unmarshal(data, &raw); err != nil {
		return ActionCommand{}, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}
	if raw.Channel == nil {
		return ActionCommand{}, fmt.Errorf("%w: missing channel", ErrBadCommand)
	}
	g, err := logic.ParseGesture(raw.Gesture)
	if err != nil {
		return ActionCommand{}, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}

	action := bytes.TrimSpace(raw.Action)
	var text string
	switch {
	case len(action) == 0:
		return ActionCommand{}, fmt.Errorf("%w: missing action", ErrBadCommand)
	case bytes.Equal(action, []byte("null")):
		text = "none"
	case action[0] == '"':
		if err := json.Unmarshal(action, &text); err != nil {
			return ActionCommand{}, fmt.Errorf("%w: %v", ErrBadCommand, err)
		}
	default:
		text = string(action)
	}
	a, err := logic.ParseAction(text)
	if err != nil {
		return ActionCommand{}, fmt.Errorf("%w: %v", ErrBadCommand, err)
	}

	return ActionCommand{Channel: *raw.Channel, Gesture: g, Action: a}, nil
}

// CommandHandler applies an action command received from the broker.
type CommandHandler func(cmd ActionCommand) error
