package mqtt

import (
	"github.com/sweeney/keyless-relay/internal/logic"
)

// FakePublisher stands in for the broker in tests. Besides the raw documents
// it keeps what a subscriber would observe: which relays fired and the
// retained status document a late subscriber would receive.
type FakePublisher struct {
	// Events and Payloads hold every gesture in publish order.
	Events   []logic.Event
	Payloads [][]byte

	// SystemEvents and SystemPayloads hold every lifecycle document.
	SystemEvents   []SystemEvent
	SystemPayloads [][]byte

	// Retained is the last retained system payload, or nil.
	Retained []byte

	// Injected failures; nothing is recorded when set.
	PublishError       error
	PublishSystemError error

	Closed    bool
	Connected bool
}

// NewFakePublisher creates an empty FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) Publish(event logic.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, event)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemEvents = append(f.SystemEvents, event)
	f.SystemPayloads = append(f.SystemPayloads, payload)
	if event.Retained {
		f.Retained = payload
	}
	return nil
}

func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Pulsed lists the relay of every published gesture that fired one.
func (f *FakePublisher) Pulsed() []logic.Action {
	var out []logic.Action
	for _, ev := range f.Events {
		if ev.Relay != logic.NoAction {
			out = append(out, ev.Relay)
		}
	}
	return out
}

// OnChannel returns the published gestures for one input channel.
func (f *FakePublisher) OnChannel(ch int) []logic.Gesture {
	var out []logic.Gesture
	for _, ev := range f.Events {
		if ev.Channel == ch {
			out = append(out, ev.Gesture)
		}
	}
	return out
}

// SystemEventNames returns the Event field of every system document.
func (f *FakePublisher) SystemEventNames() []string {
	names := make([]string, len(f.SystemEvents))
	for i, e := range f.SystemEvents {
		names[i] = e.Event
	}
	return names
}

// Reset forgets everything, including injected failures.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}
