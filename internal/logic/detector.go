package logic

import "time"

// Detector runs one Classifier per channel and turns their output into events.
type Detector struct {
	channels      [Channels]*Classifier
	startTime     time.Time
	lastHeartbeat time.Time
}

// NewDetector creates a detector with cleared timers on every channel.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(th Thresholds, startTime time.Time) *Detector {
	d := &Detector{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
	for i := range d.channels {
		d.channels[i] = NewClassifier(th)
	}
	return d
}

// Process takes a new input sample and returns any gestures resolved on this tick.
// Events are ordered by channel index. Relay is left as NoAction for dispatch.
func (d *Detector) Process(input Input) []Event {
	var events []Event
	for ch, c := range d.channels {
		for _, p := range c.Step(input.Levels[ch], input.Time) {
			events = append(events, Event{
				Timestamp: input.Time,
				Channel:   ch,
				Gesture:   p.Gesture,
				Duration:  p.Duration,
				Relay:     NoAction,
			})
		}
	}
	return events
}

// CurrentState returns the level and press state of every channel.
func (d *Detector) CurrentState() [Channels]ChannelStatus {
	var out [Channels]ChannelStatus
	for i, c := range d.channels {
		out[i] = ChannelStatus{Level: c.st.Level, State: c.State()}
	}
	return out
}

// EventCountsSnapshot returns per-channel gesture counts since startup.
func (d *Detector) EventCountsSnapshot() EventCounts {
	var out EventCounts
	for i, c := range d.channels {
		out[i] = c.Counts()
	}
	return out
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed,
// or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.EventCountsSnapshot(),
	}
}
