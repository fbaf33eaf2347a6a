package mqtt

// bufferedMsg is a serialized message held while the broker is unreachable.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool

	// latestOnly marks status documents where only the newest copy per topic
	// matters. A newer one replaces the buffered one instead of taking a slot,
	// so heartbeats during an outage never push gestures out.
	latestOnly bool
}

// ringBuffer is a fixed-capacity FIFO of outbound messages.
// Callers synchronize access.
type ringBuffer struct {
	slots   []bufferedMsg
	head    int // next write slot
	n       int
	dropped int // overwritten since last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{slots: make([]bufferedMsg, capacity)}
}

func (r *ringBuffer) slot(i int) int {
	return (r.head - r.n + i + len(r.slots)) % len(r.slots)
}

// push queues msg. When full the oldest entry is overwritten; the return value
// is true only for the first overwrite since the last drain, so callers can
// log once per outage.
func (r *ringBuffer) push(msg bufferedMsg) (firstDrop bool) {
	if msg.latestOnly {
		for i := 0; i < r.n; i++ {
			s := r.slot(i)
			if r.slots[s].latestOnly && r.slots[s].topic == msg.topic {
				r.slots[s] = msg
				return false
			}
		}
	}

	r.slots[r.head] = msg
	r.head = (r.head + 1) % len(r.slots)
	if r.n < len(r.slots) {
		r.n++
		return false
	}
	r.dropped++
	return r.dropped == 1
}

// drainAll empties the buffer and returns its messages oldest first.
func (r *ringBuffer) drainAll() []bufferedMsg {
	if r.n == 0 {
		return nil
	}
	out := make([]bufferedMsg, r.n)
	for i := range out {
		out[i] = r.slots[r.slot(i)]
	}
	r.head, r.n, r.dropped = 0, 0, 0
	return out
}

func (r *ringBuffer) len() int {
	return r.n
}
