// Package status provides a thread-safe status tracker for the keyless-relay daemon.
// It is written by the poll loop and read by HTTP handlers and heartbeats.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/keyless-relay/internal/logic"
)

// RecentLimit is how many gesture events a Snapshot keeps.
const RecentLimit = 20

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs      int64
	ShortMaxMs  int64
	LongMinMs   int64
	DoubleGapMs int64
	PulseMs     int64
	HeartbeatMs int64
	Broker      string
	Prefix      string
	NATS        string
	HTTPAddr    string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type; slices are copied and safe to use after the lock is released.
type Snapshot struct {
	Channels      [logic.Channels]logic.ChannelStatus
	Relays        []bool
	Counts        logic.EventCounts
	Recent        []logic.Event // newest first
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	idle := [logic.Channels]logic.ChannelStatus{}
	for i := range idle {
		idle[i].State = logic.StateIdle
	}
	return &Tracker{
		snap: Snapshot{
			Channels:  idle,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets channel states, relay levels, and gesture counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(channels [logic.Channels]logic.ChannelStatus, relays []bool, counts logic.EventCounts) {
	r := make([]bool, len(relays))
	copy(r, relays)

	t.mu.Lock()
	t.snap.Channels = channels
	t.snap.Relays = r
	t.snap.Counts = counts
	t.mu.Unlock()
}

// RecordEvent adds a dispatched gesture to the recent list.
func (t *Tracker) RecordEvent(ev logic.Event) {
	t.mu.Lock()
	recent := make([]logic.Event, 0, RecentLimit)
	recent = append(recent, ev)
	for _, old := range t.snap.Recent {
		if len(recent) == RecentLimit {
			break
		}
		recent = append(recent, old)
	}
	t.snap.Recent = recent
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
// Update and RecordEvent replace slices rather than mutating them, so the
// returned slices are never written after the lock is released.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
