// Package actions holds the per-channel gesture to relay mapping.
package actions

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sweeney/keyless-relay/internal/logic"
)

var (
	ErrInvalidChannel = errors.New("invalid channel")
	ErrInvalidGesture = errors.New("invalid gesture")
	ErrInvalidAction  = errors.New("invalid action")
)

// Key identifies one table entry.
type Key struct {
	Channel int
	Gesture logic.Gesture
}

// Mapping is a detached copy of table entries. Keys absent from a Mapping
// are NoAction.
type Mapping map[Key]logic.Action

// Table maps (channel, gesture) to an action. Every entry starts as NoAction.
// Safe for concurrent use: the poll loop reads while config handlers write.
type Table struct {
	mu      sync.RWMutex
	entries [logic.Channels][len(logic.Gestures)]logic.Action
}

// NewTable creates a table with every entry set to NoAction.
func NewTable() *Table {
	t := &Table{}
	for ch := range t.entries {
		for g := range t.entries[ch] {
			t.entries[ch][g] = logic.NoAction
		}
	}
	return t
}

// Get returns the action for (ch, g). Unknown keys read as NoAction.
func (t *Table) Get(ch int, g logic.Gesture) logic.Action {
	if checkKey(ch, g) != nil {
		return logic.NoAction
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.entries[ch][g]
}

// Set replaces the action for (ch, g).
func (t *Table) Set(ch int, g logic.Gesture, a logic.Action) error {
	if err := checkKey(ch, g); err != nil {
		return err
	}
	if a < logic.NoAction {
		return fmt.Errorf("%w: %d", ErrInvalidAction, a)
	}
	t.mu.Lock()
	t.entries[ch][g] = a
	t.mu.Unlock()
	return nil
}

// Replace swaps in a whole mapping. Nothing changes if any entry is invalid.
func (t *Table) Replace(m Mapping) error {
	next := NewTable().entries
	for k, a := range m {
		if err := checkKey(k.Channel, k.Gesture); err != nil {
			return err
		}
		if a < logic.NoAction {
			return fmt.Errorf("%w: %d", ErrInvalidAction, a)
		}
		next[k.Channel][k.Gesture] = a
	}
	t.mu.Lock()
	t.entries = next
	t.mu.Unlock()
	return nil
}

// Snapshot returns every entry, including NoAction ones.
func (t *Table) Snapshot() Mapping {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := make(Mapping, logic.Channels*len(logic.Gestures))
	for ch := range t.entries {
		for _, g := range logic.Gestures {
			m[Key{Channel: ch, Gesture: g}] = t.entries[ch][g]
		}
	}
	return m
}

func checkKey(ch int, g logic.Gesture) error {
	if ch < 0 || ch >= logic.Channels {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	if !g.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidGesture, int(g))
	}
	return nil
}
