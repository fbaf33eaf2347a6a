package actions

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sweeney/keyless-relay/internal/logic"
)

func TestNewTableDefaultsToNoAction(t *testing.T) {
	tb := NewTable()
	for ch := 0; ch < logic.Channels; ch++ {
		for _, g := range logic.Gestures {
			if a := tb.Get(ch, g); a != logic.NoAction {
				t.Errorf("ch%d %s: expected none, got %v", ch, g, a)
			}
		}
	}
	if n := len(tb.Snapshot()); n != logic.Channels*len(logic.Gestures) {
		t.Errorf("expected %d snapshot entries, got %d", logic.Channels*len(logic.Gestures), n)
	}
}

func TestTableSetGet(t *testing.T) {
	tb := NewTable()
	if err := tb.Set(2, logic.GestureDouble, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := tb.Get(2, logic.GestureDouble); a != 1 {
		t.Errorf("expected relay 1, got %v", a)
	}
	// Neighbours untouched
	if a := tb.Get(2, logic.GestureShort); a != logic.NoAction {
		t.Errorf("expected none for ch2 short, got %v", a)
	}

	if err := tb.Set(2, logic.GestureDouble, logic.NoAction); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := tb.Get(2, logic.GestureDouble); a != logic.NoAction {
		t.Errorf("expected none after reset, got %v", a)
	}
}

func TestTableSetRejectsBadKeys(t *testing.T) {
	tests := []struct {
		name    string
		ch      int
		g       logic.Gesture
		a       logic.Action
		wantErr error
	}{
		{"negative channel", -1, logic.GestureShort, 0, ErrInvalidChannel},
		{"channel too high", logic.Channels, logic.GestureShort, 0, ErrInvalidChannel},
		{"unknown gesture", 0, logic.Gesture(3), 0, ErrInvalidGesture},
		{"negative gesture", 0, logic.Gesture(-1), 0, ErrInvalidGesture},
		{"action below sentinel", 0, logic.GestureLong, -2, ErrInvalidAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := NewTable()
			err := tb.Set(tt.ch, tt.g, tt.a)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTableGetOutOfRangeIsNoAction(t *testing.T) {
	tb := NewTable()
	if a := tb.Get(9, logic.GestureShort); a != logic.NoAction {
		t.Errorf("expected none, got %v", a)
	}
	if a := tb.Get(0, logic.Gesture(9)); a != logic.NoAction {
		t.Errorf("expected none, got %v", a)
	}
}

func TestTableReplace(t *testing.T) {
	tb := NewTable()
	tb.Set(0, logic.GestureShort, 3)

	err := tb.Replace(Mapping{
		{Channel: 1, Gesture: logic.GestureLong}: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := tb.Get(1, logic.GestureLong); a != 2 {
		t.Errorf("expected relay 2, got %v", a)
	}
	// Entries absent from the mapping are cleared
	if a := tb.Get(0, logic.GestureShort); a != logic.NoAction {
		t.Errorf("expected none for replaced entry, got %v", a)
	}
}

func TestTableReplaceIsAtomic(t *testing.T) {
	tb := NewTable()
	tb.Set(0, logic.GestureShort, 3)

	err := tb.Replace(Mapping{
		{Channel: 1, Gesture: logic.GestureLong}: 2,
		{Channel: 7, Gesture: logic.GestureLong}: 2,
	})
	if !errors.Is(err, ErrInvalidChannel) {
		t.Fatalf("expected ErrInvalidChannel, got %v", err)
	}
	if a := tb.Get(0, logic.GestureShort); a != 3 {
		t.Errorf("table changed on failed replace: got %v", a)
	}
	if a := tb.Get(1, logic.GestureLong); a != logic.NoAction {
		t.Errorf("table changed on failed replace: got %v", a)
	}
}

func TestTableConcurrentAccess(t *testing.T) {
	tb := NewTable()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tb.Set(i%logic.Channels, logic.GestureShort, logic.Action(j%logic.Channels))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tb.Get(j%logic.Channels, logic.GestureShort)
				tb.Snapshot()
			}
		}()
	}

	wg.Wait()
}

// memStore is a minimal Store for manager tests.
type memStore struct {
	data    Mapping
	saved   []Key
	loadErr error
	saveErr error
}

func (s *memStore) Load() (Mapping, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(Mapping, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(ch int, g logic.Gesture, a logic.Action) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if s.data == nil {
		s.data = Mapping{}
	}
	s.data[Key{Channel: ch, Gesture: g}] = a
	s.saved = append(s.saved, Key{Channel: ch, Gesture: g})
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManagerLoad(t *testing.T) {
	st := &memStore{data: Mapping{
		{Channel: 0, Gesture: logic.GestureShort}:  1,
		{Channel: 3, Gesture: logic.GestureDouble}: 0,
	}}
	tb := NewTable()
	m := NewManager(tb, st, logic.Channels, quietLogger())

	if err := m.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := tb.Get(0, logic.GestureShort); a != 1 {
		t.Errorf("expected relay 1, got %v", a)
	}
	if a := tb.Get(3, logic.GestureDouble); a != 0 {
		t.Errorf("expected relay 0, got %v", a)
	}
}

func TestManagerLoadDropsInvalidRelay(t *testing.T) {
	st := &memStore{data: Mapping{
		{Channel: 0, Gesture: logic.GestureShort}: 9,
		{Channel: 1, Gesture: logic.GestureShort}: 2,
	}}
	tb := NewTable()
	m := NewManager(tb, st, logic.Channels, quietLogger())

	if err := m.Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := tb.Get(0, logic.GestureShort); a != logic.NoAction {
		t.Errorf("expected stale relay 9 dropped, got %v", a)
	}
	if a := tb.Get(1, logic.GestureShort); a != 2 {
		t.Errorf("expected relay 2, got %v", a)
	}
}

func TestManagerLoadError(t *testing.T) {
	st := &memStore{loadErr: errors.New("disk gone")}
	m := NewManager(NewTable(), st, logic.Channels, quietLogger())
	if err := m.Load(); err == nil {
		t.Error("expected load error")
	}
}

func TestManagerApply(t *testing.T) {
	st := &memStore{}
	tb := NewTable()
	m := NewManager(tb, st, logic.Channels, quietLogger())

	if err := m.Apply(1, logic.GestureLong, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := tb.Get(1, logic.GestureLong); a != 3 {
		t.Errorf("expected relay 3, got %v", a)
	}
	if len(st.saved) != 1 || st.saved[0] != (Key{Channel: 1, Gesture: logic.GestureLong}) {
		t.Errorf("expected one save for ch1 long, got %v", st.saved)
	}
}

func TestManagerApplyRejectsOutOfRangeRelay(t *testing.T) {
	st := &memStore{}
	tb := NewTable()
	m := NewManager(tb, st, logic.Channels, quietLogger())

	err := m.Apply(0, logic.GestureShort, logic.Action(logic.Channels))
	if !errors.Is(err, ErrInvalidAction) {
		t.Fatalf("expected ErrInvalidAction, got %v", err)
	}
	if a := tb.Get(0, logic.GestureShort); a != logic.NoAction {
		t.Errorf("table changed on rejected apply: %v", a)
	}
	if len(st.saved) != 0 {
		t.Errorf("store written on rejected apply: %v", st.saved)
	}
}

func TestManagerRelayCountCappedAtChannels(t *testing.T) {
	st := &memStore{}
	m := NewManager(NewTable(), st, logic.Channels+2, quietLogger())

	if m.Relays() != logic.Channels {
		t.Errorf("Relays: got %d, want %d", m.Relays(), logic.Channels)
	}
	err := m.Apply(0, logic.GestureShort, logic.Action(logic.Channels))
	if !errors.Is(err, ErrInvalidAction) {
		t.Errorf("expected ErrInvalidAction, got %v", err)
	}
}

func TestManagerApplyRejectsBadChannel(t *testing.T) {
	m := NewManager(NewTable(), &memStore{}, logic.Channels, quietLogger())
	if err := m.Apply(5, logic.GestureShort, 0); !errors.Is(err, ErrInvalidChannel) {
		t.Errorf("expected ErrInvalidChannel, got %v", err)
	}
}

func TestManagerApplySaveFailureKeepsValue(t *testing.T) {
	st := &memStore{saveErr: errors.New("read-only filesystem")}
	tb := NewTable()
	m := NewManager(tb, st, logic.Channels, quietLogger())

	err := m.Apply(2, logic.GestureShort, 1)
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("expected ErrPersist, got %v", err)
	}
	if a := tb.Get(2, logic.GestureShort); a != 1 {
		t.Errorf("expected in-memory value kept, got %v", a)
	}
}
