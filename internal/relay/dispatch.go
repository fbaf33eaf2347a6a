package relay

import (
	"log/slog"
	"time"

	"github.com/sweeney/keyless-relay/internal/logic"
)

// Lookup resolves the configured action for a channel and gesture.
// *actions.Table satisfies it.
type Lookup interface {
	Get(ch int, g logic.Gesture) logic.Action
}

// Dispatcher maps resolved gestures to relay pulses.
type Dispatcher struct {
	table  Lookup
	act    *Actuator
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher reading from table and pulsing act.
func NewDispatcher(table Lookup, act *Actuator, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{table: table, act: act, logger: logger}
}

// Dispatch looks up the action for ev and pulses the relay if one is set.
// The returned event carries the relay that was pulsed, or NoAction. A stored
// relay at or above the channel count, or outside the actuator's range, is
// treated as NoAction.
func (d *Dispatcher) Dispatch(ev logic.Event, now time.Time) logic.Event {
	ev.Relay = logic.NoAction

	a := d.table.Get(ev.Channel, ev.Gesture)
	if a == logic.NoAction {
		return ev
	}
	if !a.ValidRelay(min(d.act.Len(), logic.Channels)) {
		d.logger.Warn("ignoring action with invalid relay",
			"channel", ev.Channel, "gesture", ev.Gesture.String(), "relay", int(a))
		return ev
	}

	if err := d.act.Pulse(int(a), now); err != nil {
		d.logger.Error("relay pulse failed", "relay", int(a), "error", err)
		return ev
	}
	ev.Relay = a
	d.logger.Info("relay pulsed",
		"channel", ev.Channel, "gesture", ev.Gesture.String(), "relay", int(a))
	return ev
}
