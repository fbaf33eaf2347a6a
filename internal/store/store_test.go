package store

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sweeney/keyless-relay/internal/actions"
	"github.com/sweeney/keyless-relay/internal/logic"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "actions.toml")
	return NewFileStore(path, slog.New(slog.NewTextHandler(io.Discard, nil))), path
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s, _ := newTestStore(t)

	m, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("expected empty mapping, got %v", m)
	}
}

func TestSaveThenLoad(t *testing.T) {
	s, path := newTestStore(t)

	if err := s.Save(0, logic.GestureShort, 1); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(3, logic.GestureDouble, 0); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Fresh store reads what the first one wrote
	s2 := NewFileStore(path, nil)
	m, err := s2.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m) != 2 {
		t.Fatalf("expected 2 entries, got %d (%v)", len(m), m)
	}
	if m[actions.Key{Channel: 0, Gesture: logic.GestureShort}] != 1 {
		t.Errorf("ch0 short: got %v", m[actions.Key{Channel: 0, Gesture: logic.GestureShort}])
	}
	if m[actions.Key{Channel: 3, Gesture: logic.GestureDouble}] != 0 {
		t.Errorf("ch3 double: got %v", m[actions.Key{Channel: 3, Gesture: logic.GestureDouble}])
	}
}

func TestSaveNoActionRemovesEntry(t *testing.T) {
	s, path := newTestStore(t)

	s.Save(1, logic.GestureLong, 2)
	s.Save(1, logic.GestureLong, logic.NoAction)

	m, err := NewFileStore(path, nil).Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(m) != 0 {
		t.Errorf("expected entry removed, got %v", m)
	}
}

func TestFileFormat(t *testing.T) {
	s, path := newTestStore(t)
	s.Save(2, logic.GestureLong, 3)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, `[channel.2]`) {
		t.Errorf("expected [channel.2] table, got:\n%s", got)
	}
	if !strings.Contains(got, `long = "3"`) {
		t.Errorf("expected long = \"3\", got:\n%s", got)
	}
}

func TestLoadSkipsInvalidEntries(t *testing.T) {
	s, path := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	content := `
[channel.0]
short = "2"
triple = "1"
long = "relay"
double = "none"

[channel.9]
short = "1"

[channel.x]
short = "1"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := s.Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m) != 1 {
		t.Fatalf("expected only ch0 short, got %v", m)
	}
	if m[actions.Key{Channel: 0, Gesture: logic.GestureShort}] != 2 {
		t.Errorf("ch0 short: got %v", m[actions.Key{Channel: 0, Gesture: logic.GestureShort}])
	}
}

func TestLoadCorruptFile(t *testing.T) {
	s, path := newTestStore(t)
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("[channel.0\nshort ="), 0o644)

	if _, err := s.Load(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestSaveReplacesCorruptFile(t *testing.T) {
	s, path := newTestStore(t)
	garbage := []byte("[channel.0\nshort =")
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, garbage, 0o644)

	if _, err := s.Load(); err == nil {
		t.Fatal("expected load error")
	}
	// The daemon runs with an empty table; edits must still persist.
	if err := s.Save(1, logic.GestureLong, 2); err != nil {
		t.Fatalf("save after corrupt load: %v", err)
	}
	if err := s.Save(0, logic.GestureShort, 3); err != nil {
		t.Fatalf("second save: %v", err)
	}

	m, err := NewFileStore(path, nil).Load()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	want := actions.Mapping{
		{Channel: 1, Gesture: logic.GestureLong}:  2,
		{Channel: 0, Gesture: logic.GestureShort}: 3,
	}
	if len(m) != len(want) {
		t.Fatalf("got %v, want %v", m, want)
	}
	for k, a := range want {
		if m[k] != a {
			t.Errorf("%v: got %v, want %v", k, m[k], a)
		}
	}

	kept, err := os.ReadFile(path + corruptSuffix)
	if err != nil {
		t.Fatalf("corrupt file not kept: %v", err)
	}
	if string(kept) != string(garbage) {
		t.Errorf("corrupt copy changed: %q", kept)
	}
}

func TestManagerRecoversFromCorruptFile(t *testing.T) {
	s, path := newTestStore(t)
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("not = [toml"), 0o644)

	tb := actions.NewTable()
	m := actions.NewManager(tb, s, logic.Channels, nil)
	if err := m.Load(); err == nil {
		t.Fatal("expected load error")
	}
	if err := m.Apply(2, logic.GestureDouble, 1); err != nil {
		t.Fatalf("apply after corrupt load: %v", err)
	}
	if err := m.Apply(3, logic.GestureShort, 0); err != nil {
		t.Fatalf("second apply: %v", err)
	}
}

func TestSaveKeepsOtherEntries(t *testing.T) {
	s, path := newTestStore(t)
	os.MkdirAll(filepath.Dir(path), 0o755)
	os.WriteFile(path, []byte("[channel.1]\ndouble = \"0\"\n"), 0o644)

	// Save before Load still merges with what is on disk
	if err := s.Save(0, logic.GestureShort, 3); err != nil {
		t.Fatalf("save: %v", err)
	}

	m, _ := NewFileStore(path, nil).Load()
	if len(m) != 2 {
		t.Errorf("expected 2 entries, got %v", m)
	}
}

func TestFileStoreWithManager(t *testing.T) {
	s, _ := newTestStore(t)
	tb := actions.NewTable()
	m := actions.NewManager(tb, s, logic.Channels, nil)

	if err := m.Apply(2, logic.GestureShort, 1); err != nil {
		t.Fatalf("apply: %v", err)
	}

	tb2 := actions.NewTable()
	if err := actions.NewManager(tb2, s, logic.Channels, nil).Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if a := tb2.Get(2, logic.GestureShort); a != 1 {
		t.Errorf("expected relay 1 after reload, got %v", a)
	}
}

func TestMemStore(t *testing.T) {
	s := NewMemStore(actions.Mapping{{Channel: 0, Gesture: logic.GestureLong}: 1})

	m, _ := s.Load()
	if m[actions.Key{Channel: 0, Gesture: logic.GestureLong}] != 1 {
		t.Errorf("expected seeded entry, got %v", m)
	}

	s.Save(0, logic.GestureLong, logic.NoAction)
	m, _ = s.Load()
	if len(m) != 0 {
		t.Errorf("expected entry removed, got %v", m)
	}
	if s.Saves != 1 {
		t.Errorf("expected 1 save, got %d", s.Saves)
	}

	s.SaveError = errors.New("boom")
	if err := s.Save(1, logic.GestureShort, 0); err == nil {
		t.Error("expected save error")
	}
}
