//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads RF input lines using Linux GPIO character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	vals  []int
}

// NewRealReader requests the given BCM pins as inputs. With activeLow set the
// kernel inverts the lines, for receivers that pull low on a keypress.
func NewRealReader(chipName string, pins []int, activeLow bool) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Pull-down matches Pi boot defaults and keeps a disconnected receiver idle.
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithPullDown}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	lines, err := chip.RequestLines(pins, opts...)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request input pins %v: %w", pins, err)
	}

	return &RealReader{
		chip:  chip,
		lines: lines,
		vals:  make([]int, len(pins)),
	}, nil
}

// Read returns the logical levels of all input lines.
func (r *RealReader) Read() ([]bool, error) {
	if err := r.lines.Values(r.vals); err != nil {
		return nil, fmt.Errorf("read input pins: %w", err)
	}
	out := make([]bool, len(r.vals))
	for i, v := range r.vals {
		out[i] = v == 1
	}
	return out, nil
}

// Close releases GPIO resources.
// Reconfigures pins to input with pull-down (matching Pi boot defaults) before
// closing to ensure clean state for system shutdown/reboot.
func (r *RealReader) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure input pins: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close input pins: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealWriter drives relay lines using Linux GPIO character device.
type RealWriter struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
	vals  []int
}

// NewRealWriter requests the given BCM pins as outputs, all initially low.
func NewRealWriter(chipName string, pins []int) (*RealWriter, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	vals := make([]int, len(pins))
	lines, err := chip.RequestLines(pins, gpiocdev.AsOutput(vals...))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pins %v: %w", pins, err)
	}

	return &RealWriter{
		chip:  chip,
		lines: lines,
		vals:  vals,
	}, nil
}

// Set drives a single relay line, leaving the others unchanged.
func (w *RealWriter) Set(index int, on bool) error {
	if index < 0 || index >= len(w.vals) {
		return fmt.Errorf("relay index %d out of range [0,%d)", index, len(w.vals))
	}
	v := 0
	if on {
		v = 1
	}
	w.vals[index] = v
	if err := w.lines.SetValues(w.vals); err != nil {
		return fmt.Errorf("set relay %d: %w", index, err)
	}
	return nil
}

// Len returns the number of relay lines.
func (w *RealWriter) Len() int {
	return len(w.vals)
}

// Close drives every relay low, then hands the pins back as pulled-down inputs.
func (w *RealWriter) Close() error {
	var errs []error

	if w.lines != nil {
		for i := range w.vals {
			w.vals[i] = 0
		}
		if err := w.lines.SetValues(w.vals); err != nil {
			errs = append(errs, fmt.Errorf("release relays: %w", err))
		}
		if err := w.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay pins: %w", err))
		}
		if err := w.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pins: %w", err))
		}
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
