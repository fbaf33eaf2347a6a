package gpio

import (
	"errors"
	"testing"
)

func TestFakeReaderRead(t *testing.T) {
	samples := [][]bool{
		{true, false, false, false},
		{false, true, false, false},
		{false, false, true, true},
	}

	f := NewFakeReader(samples)

	for i, want := range samples {
		got, err := f.Read()
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if !equal(got, want) {
			t.Errorf("sample %d: expected %v, got %v", i, want, got)
		}
	}

	// Fourth read should repeat last sample
	got, err := f.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equal(got, samples[2]) {
		t.Errorf("sample 3 (repeat): expected %v, got %v", samples[2], got)
	}
}

func TestFakeReaderReturnsCopy(t *testing.T) {
	f := NewFakeReader([][]bool{{true, false}})
	got, _ := f.Read()
	got[0] = false

	again, _ := f.Read()
	if !again[0] {
		t.Error("mutating a returned sample changed the script")
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader(nil)

	_, err := f.Read()
	if err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader([][]bool{{true}})
	f.ReadError = errors.New("simulated error")

	_, err := f.Read()
	if err == nil {
		t.Error("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeReaderClose(t *testing.T) {
	f := NewFakeReader([][]bool{{true}})

	if f.Closed {
		t.Error("should not be closed initially")
	}

	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeReaderReset(t *testing.T) {
	samples := [][]bool{
		{true, false},
		{false, true},
	}

	f := NewFakeReader(samples)

	// Consume first sample
	f.Read()

	// Reset
	f.Reset()

	// Should read first sample again
	got, _ := f.Read()
	if !equal(got, samples[0]) {
		t.Errorf("after reset: expected %v, got %v", samples[0], got)
	}
}

func TestFakeWriterSet(t *testing.T) {
	w := NewFakeWriter(4)
	if w.Len() != 4 {
		t.Fatalf("expected 4 relays, got %d", w.Len())
	}

	if err := w.Set(2, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.Set(2, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Change{{Index: 2, On: true}, {Index: 2, On: false}}
	if len(w.Changes) != len(want) {
		t.Fatalf("expected %d changes, got %d", len(want), len(w.Changes))
	}
	for i := range want {
		if w.Changes[i] != want[i] {
			t.Errorf("change %d: expected %+v, got %+v", i, want[i], w.Changes[i])
		}
	}
}

func TestFakeWriterOutOfRange(t *testing.T) {
	w := NewFakeWriter(4)
	if err := w.Set(4, true); err == nil {
		t.Error("expected error for index 4")
	}
	if err := w.Set(-1, true); err == nil {
		t.Error("expected error for index -1")
	}
	if len(w.Changes) != 0 {
		t.Errorf("expected no recorded changes, got %v", w.Changes)
	}
}

func TestFakeWriterCloseReleasesRelays(t *testing.T) {
	w := NewFakeWriter(2)
	w.Set(0, true)
	w.Close()

	if !w.Closed {
		t.Error("should be closed after Close()")
	}
	if w.Levels[0] {
		t.Error("expected relay 0 released on close")
	}
}

func equal(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
