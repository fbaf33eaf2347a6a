package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/keyless-relay/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	Channels      []ChannelJSON `json:"channels"`
	Relays        []bool        `json:"relays"`
	Totals        CountsJSON    `json:"event_counts"`
	Recent        []EventJSON   `json:"recent,omitempty"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// ChannelJSON reports one input channel.
type ChannelJSON struct {
	Channel int        `json:"channel"`
	Level   bool       `json:"level"`
	State   string     `json:"state"`
	Counts  CountsJSON `json:"counts"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of gesture counts.
type CountsJSON struct {
	Short     int `json:"short"`
	Long      int `json:"long"`
	Double    int `json:"double"`
	Discarded int `json:"discarded"`
}

// EventJSON is a compact form of a recent gesture event.
type EventJSON struct {
	ID         string `json:"id,omitempty"`
	Timestamp  string `json:"timestamp"`
	Channel    int    `json:"channel"`
	Gesture    string `json:"gesture"`
	DurationMs int64  `json:"duration_ms"`
	Relay      string `json:"relay"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	ShortMaxMs  int64  `json:"short_max_ms"`
	LongMinMs   int64  `json:"long_min_ms"`
	DoubleGapMs int64  `json:"double_gap_ms"`
	PulseMs     int64  `json:"pulse_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	Prefix      string `json:"prefix"`
	NATS        string `json:"nats,omitempty"`
	HTTPAddr    string `json:"http_addr"`
}

// NewEventJSON converts a dispatched gesture event.
func NewEventJSON(ev logic.Event) EventJSON {
	return EventJSON{
		ID:         ev.ID,
		Timestamp:  ev.Timestamp.UTC().Format(time.RFC3339),
		Channel:    ev.Channel,
		Gesture:    ev.Gesture.String(),
		DurationMs: ev.Duration.Milliseconds(),
		Relay:      ev.Relay.String(),
	}
}

func countsJSON(c logic.GestureCounts) CountsJSON {
	return CountsJSON{Short: c.Short, Long: c.Long, Double: c.Double, Discarded: c.Discarded}
}

func stateOrIdle(s logic.PressState) string {
	if s == "" {
		return string(logic.StateIdle)
	}
	return string(s)
}

func buildInner(snap Snapshot) StatusInner {
	channels := make([]ChannelJSON, len(snap.Channels))
	for i, c := range snap.Channels {
		channels[i] = ChannelJSON{
			Channel: i,
			Level:   c.Level,
			State:   stateOrIdle(c.State),
			Counts:  countsJSON(snap.Counts[i]),
		}
	}

	relays := snap.Relays
	if relays == nil {
		relays = []bool{}
	}

	var recent []EventJSON
	for _, ev := range snap.Recent {
		recent = append(recent, NewEventJSON(ev))
	}

	return StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Channels:      channels,
		Relays:        relays,
		Totals:        countsJSON(snap.Counts.Total()),
		Recent:        recent,
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			ShortMaxMs:  snap.Config.ShortMaxMs,
			LongMinMs:   snap.Config.LongMinMs,
			DoubleGapMs: snap.Config.DoubleGapMs,
			PulseMs:     snap.Config.PulseMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			Prefix:      snap.Config.Prefix,
			NATS:        snap.Config.NATS,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
// Recent events are left out to keep retained messages small.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	inner.Recent = nil
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
