// Package relay drives the relay outputs: fixed-width pulses and gesture dispatch.
package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrInvalidRelay is returned when a relay index is outside the output range.
var ErrInvalidRelay = errors.New("invalid relay")

// Output is the subset of gpio.Writer the actuator needs.
type Output interface {
	Set(index int, on bool) error
	Len() int
}

// Actuator pulses relay outputs without blocking the poll loop. Pulse raises a
// line and records a deadline; Expire lowers every line whose deadline passed.
// It is driven from the poll loop only and is not safe for concurrent use.
type Actuator struct {
	out      Output
	width    time.Duration
	deadline []time.Time
	on       []bool
	logger   *slog.Logger
}

// NewActuator creates an actuator over out with the given pulse width.
func NewActuator(out Output, width time.Duration, logger *slog.Logger) *Actuator {
	if logger == nil {
		logger = slog.Default()
	}
	n := out.Len()
	return &Actuator{
		out:      out,
		width:    width,
		deadline: make([]time.Time, n),
		on:       make([]bool, n),
		logger:   logger,
	}
}

// Len returns the number of relays.
func (a *Actuator) Len() int {
	return len(a.on)
}

// Width returns the pulse width.
func (a *Actuator) Width() time.Duration {
	return a.width
}

// Pulse energizes relay index until now+width. Pulsing a relay that is
// already energized restarts its window.
func (a *Actuator) Pulse(index int, now time.Time) error {
	if index < 0 || index >= len(a.on) {
		return fmt.Errorf("%w: %d out of range [0,%d)", ErrInvalidRelay, index, len(a.on))
	}
	if !a.on[index] {
		if err := a.out.Set(index, true); err != nil {
			return fmt.Errorf("energize relay %d: %w", index, err)
		}
		a.on[index] = true
	}
	a.deadline[index] = now.Add(a.width)
	a.logger.Debug("relay energized", "relay", index, "until", a.deadline[index])
	return nil
}

// Expire de-energizes relays whose pulse has ended and returns their indices.
// A relay whose write fails stays marked energized and is retried next call.
func (a *Actuator) Expire(now time.Time) []int {
	var done []int
	for i, on := range a.on {
		if !on || now.Before(a.deadline[i]) {
			continue
		}
		if err := a.out.Set(i, false); err != nil {
			a.logger.Error("failed to de-energize relay", "relay", i, "error", err)
			continue
		}
		a.on[i] = false
		done = append(done, i)
		a.logger.Debug("relay released", "relay", i)
	}
	return done
}

// Energized returns a copy of the relay states.
func (a *Actuator) Energized() []bool {
	out := make([]bool, len(a.on))
	copy(out, a.on)
	return out
}

// Release de-energizes every relay immediately. Used on shutdown.
func (a *Actuator) Release() {
	for i, on := range a.on {
		if !on {
			continue
		}
		if err := a.out.Set(i, false); err != nil {
			a.logger.Error("failed to de-energize relay", "relay", i, "error", err)
			continue
		}
		a.on[i] = false
	}
}
