package gpio

import (
	"errors"
	"fmt"
)

// FakeReader is a test double that returns scripted GPIO values.
type FakeReader struct {
	// Samples contains scripted input levels to return.
	// Each call to Read() consumes the next sample.
	Samples [][]bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples [][]bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() ([]bool, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}

	if len(f.Samples) == 0 {
		return nil, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	out := make([]bool, len(sample))
	copy(out, sample)
	return out, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// Change is a single recorded relay write.
type Change struct {
	Index int
	On    bool
}

// FakeWriter records relay writes for test assertions.
type FakeWriter struct {
	// Levels holds the current level of each relay.
	Levels []bool

	// Changes contains every Set call in order.
	Changes []Change

	// SetError, if set, will be returned by Set.
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeWriter creates a FakeWriter with n relays, all low.
func NewFakeWriter(n int) *FakeWriter {
	return &FakeWriter{Levels: make([]bool, n)}
}

// Set records the write and updates Levels.
func (f *FakeWriter) Set(index int, on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	if index < 0 || index >= len(f.Levels) {
		return fmt.Errorf("relay index %d out of range [0,%d)", index, len(f.Levels))
	}
	f.Levels[index] = on
	f.Changes = append(f.Changes, Change{Index: index, On: on})
	return nil
}

// Len returns the number of relays.
func (f *FakeWriter) Len() int {
	return len(f.Levels)
}

// Close drives all relays low and marks the writer as closed.
func (f *FakeWriter) Close() error {
	for i := range f.Levels {
		f.Levels[i] = false
	}
	f.Closed = true
	return nil
}
