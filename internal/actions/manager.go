package actions

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sweeney/keyless-relay/internal/logic"
)

// ErrPersist wraps store failures. The in-memory table already holds the new
// value when it is returned.
var ErrPersist = errors.New("persist action")

// Store persists the action table.
type Store interface {
	// Load returns the stored mapping. A store with nothing saved returns an
	// empty mapping and no error.
	Load() (Mapping, error)

	// Save persists a single entry.
	Save(ch int, g logic.Gesture, a logic.Action) error
}

// Manager is the configuration boundary: it validates relay targets, updates
// the table, and writes through to the store.
type Manager struct {
	table  *Table
	store  Store
	relays int
	logger *slog.Logger
}

// NewManager creates a Manager over table and store for the given relay count.
// The count is capped at logic.Channels.
func NewManager(table *Table, store Store, relays int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	relays = min(relays, logic.Channels)
	return &Manager{table: table, store: store, relays: relays, logger: logger}
}

// Table returns the managed table.
func (m *Manager) Table() *Table {
	return m.table
}

// Relays returns the number of relays an action may target.
func (m *Manager) Relays() int {
	return m.relays
}

// Load replaces the table with the stored mapping. Entries targeting a relay
// outside [0, relays) are dropped and left as NoAction.
func (m *Manager) Load() error {
	stored, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("load actions: %w", err)
	}
	clean := make(Mapping, len(stored))
	for k, a := range stored {
		if a != logic.NoAction && !a.ValidRelay(m.relays) {
			m.logger.Warn("dropping stored action with invalid relay",
				"channel", k.Channel, "gesture", k.Gesture.String(), "relay", int(a))
			continue
		}
		clean[k] = a
	}
	if err := m.table.Replace(clean); err != nil {
		return fmt.Errorf("load actions: %w", err)
	}
	m.logger.Info("loaded actions", "configured", len(clean))
	return nil
}

// Apply validates and sets a single entry, then saves it. A save failure is
// logged and returned wrapped in ErrPersist; the table keeps the new value.
func (m *Manager) Apply(ch int, g logic.Gesture, a logic.Action) error {
	if a != logic.NoAction && !a.ValidRelay(m.relays) {
		return fmt.Errorf("%w: relay %d out of range [0,%d)", ErrInvalidAction, int(a), m.relays)
	}
	if err := m.table.Set(ch, g, a); err != nil {
		return err
	}
	m.logger.Info("action updated", "channel", ch, "gesture", g.String(), "action", a.String())

	if err := m.store.Save(ch, g, a); err != nil {
		m.logger.Error("failed to save action", "channel", ch, "gesture", g.String(), "error", err)
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}
