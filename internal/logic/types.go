// Package logic contains pure business logic for RF press classification.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Channels is the number of RF input channels. Relay count equals channel count.
const Channels = 4

// Default timing thresholds.
const (
	ShortPressMax   = 400 * time.Millisecond
	LongPressMin    = 800 * time.Millisecond
	DoublePressGap  = 500 * time.Millisecond
	RelayPulseWidth = 300 * time.Millisecond
)

// Gesture is a classified press outcome.
type Gesture int

const (
	GestureShort Gesture = iota
	GestureLong
	GestureDouble
)

// Gestures lists every gesture in table order.
var Gestures = [...]Gesture{GestureShort, GestureLong, GestureDouble}

// String returns the wire name of the gesture ("short", "long", "double").
func (g Gesture) String() string {
	switch g {
	case GestureShort:
		return "short"
	case GestureLong:
		return "long"
	case GestureDouble:
		return "double"
	default:
		return fmt.Sprintf("gesture(%d)", int(g))
	}
}

// Valid reports whether g is one of the known gestures.
func (g Gesture) Valid() bool {
	return g >= GestureShort && g <= GestureDouble
}

// ParseGesture converts a wire name into a Gesture.
func ParseGesture(s string) (Gesture, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short":
		return GestureShort, nil
	case "long":
		return GestureLong, nil
	case "double":
		return GestureDouble, nil
	default:
		return 0, fmt.Errorf("unknown gesture %q", s)
	}
}

// Action is the configured outcome of a gesture: a relay index or NoAction.
type Action int

// NoAction means the gesture does not drive any relay.
const NoAction Action = -1

// String returns "none" for NoAction and the decimal relay index otherwise.
func (a Action) String() string {
	if a == NoAction {
		return "none"
	}
	return strconv.Itoa(int(a))
}

// ValidRelay reports whether a targets a relay in [0, relays).
func (a Action) ValidRelay(relays int) bool {
	return a >= 0 && int(a) < relays
}

// ParseAction parses "none" (or empty) as NoAction and a non-negative integer as a
// relay index. Range checking against the relay count is left to the caller.
func ParseAction(s string) (Action, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return NoAction, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return NoAction, fmt.Errorf("parse action %q: %w", s, err)
	}
	if n < 0 {
		return NoAction, fmt.Errorf("parse action %q: negative relay index", s)
	}
	return Action(n), nil
}

// PressState is the observable state of a channel's classifier.
type PressState string

const (
	StateIdle     PressState = "IDLE"
	StatePressing PressState = "PRESSING"
	// StateAwaiting means a short press is held back waiting for a second press.
	StateAwaiting PressState = "AWAITING_DOUBLE"
)

// Thresholds holds the press timing windows. Comparisons are inclusive for
// ShortMax and LongMin and for the double gap; the pending short expires only
// once the gap is strictly exceeded.
type Thresholds struct {
	ShortMax  time.Duration
	LongMin   time.Duration
	DoubleGap time.Duration
}

// DefaultThresholds returns the standard 400/800/500ms windows.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ShortMax:  ShortPressMax,
		LongMin:   LongPressMin,
		DoubleGap: DoublePressGap,
	}
}

// Validate checks that the short window ends before the long window starts.
func (t Thresholds) Validate() error {
	if t.ShortMax <= 0 || t.LongMin <= 0 || t.DoubleGap <= 0 {
		return fmt.Errorf("thresholds must be positive (short=%v long=%v gap=%v)", t.ShortMax, t.LongMin, t.DoubleGap)
	}
	if t.ShortMax >= t.LongMin {
		return fmt.Errorf("short press max %v must be below long press min %v", t.ShortMax, t.LongMin)
	}
	return nil
}

// ChannelState tracks press timing for a single channel.
type ChannelState struct {
	// Last sampled line level
	Level bool
	// Whether a press is in progress
	Pressing bool
	// Time the current press began
	PressStart time.Time
	// Time the last short press ended
	LastShortEnd time.Time
	// Duration of the held short press
	LastShortDuration time.Duration
	// A short press is awaiting possible pairing into a double
	DoublePending bool
}

// Press is a single classification result.
type Press struct {
	Gesture  Gesture
	Duration time.Duration
}

// Input represents a single sample of all channel levels.
type Input struct {
	Levels [Channels]bool // true = line high
	Time   time.Time
}

// Event represents a classified gesture to be dispatched and published.
type Event struct {
	ID        string
	Timestamp time.Time
	Channel   int
	Gesture   Gesture
	Duration  time.Duration
	// Relay that was pulsed, or NoAction. Filled in by dispatch.
	Relay Action
}

// GestureCounts tracks classification outcomes for one channel.
type GestureCounts struct {
	Short     int
	Long      int
	Double    int
	Discarded int
}

// Add increments the counter for g.
func (c *GestureCounts) Add(g Gesture) {
	switch g {
	case GestureShort:
		c.Short++
	case GestureLong:
		c.Long++
	case GestureDouble:
		c.Double++
	}
}

// EventCounts tracks the number of each gesture per channel since startup.
type EventCounts [Channels]GestureCounts

// Total sums gesture counts across all channels.
func (e EventCounts) Total() GestureCounts {
	var t GestureCounts
	for _, c := range e {
		t.Short += c.Short
		t.Long += c.Long
		t.Double += c.Double
		t.Discarded += c.Discarded
	}
	return t
}

// ChannelStatus is a point-in-time view of one channel.
type ChannelStatus struct {
	Level bool
	State PressState
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
