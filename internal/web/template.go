package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/keyless-relay/internal/actions"
	"github.com/sweeney/keyless-relay/internal/logic"
	"github.com/sweeney/keyless-relay/internal/status"
)

var funcs = template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"utc": func(t time.Time) string {
		return t.UTC().Format("2006-01-02T15:04:05Z")
	},
}

var indexTmpl = template.Must(template.New("index").Funcs(funcs).Parse(indexHTML))

var actionsTmpl = template.Must(template.New("actions").Funcs(funcs).Parse(actionsHTML))

const styleCSS = `<style>
body { font-family: monospace; max-width: 640px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
.saved { color: green; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>`

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Keyless Relay</title>
` + styleCSS + `
</head>
<body>
<h1>Keyless Relay{{if .Live}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Channels</h2>
<table>
<tr><th>Ch</th><th>Level</th><th>State</th><th>Short</th><th>Long</th><th>Double</th><th>Discarded</th></tr>
{{range .Channels}}<tr><td>{{.Index}}</td><td class="{{if .Level}}on{{else}}off{{end}}">{{if .Level}}HIGH{{else}}low{{end}}</td><td>{{.State}}</td><td>{{.Counts.Short}}</td><td>{{.Counts.Long}}</td><td>{{.Counts.Double}}</td><td>{{.Counts.Discarded}}</td></tr>
{{end}}</table>

<h2>Relays</h2>
<table>
{{range $i, $on := .Snapshot.Relays}}<tr><th>Relay {{$i}}</th><td class="{{if $on}}on{{else}}off{{end}}">{{if $on}}ON{{else}}off{{end}}</td></tr>
{{end}}</table>

<h2>Recent</h2>
<table id="recent">
<tr><th>Time</th><th>Ch</th><th>Gesture</th><th>Duration</th><th>Relay</th></tr>
{{range .Snapshot.Recent}}<tr><td>{{utc .Timestamp}}</td><td>{{.Channel}}</td><td>{{.Gesture}}</td><td>{{.Duration.Milliseconds}}ms</td><td>{{.Relay}}</td></tr>
{{end}}</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .Snapshot.MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .Snapshot.MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Snapshot.Config.Broker}}</td></tr>
{{if .Snapshot.Config.NATS}}<tr><th>NATS</th><td>{{.Snapshot.Config.NATS}}</td></tr>{{end}}
{{if .Snapshot.Network}}<tr><th>Network</th><td>{{.Snapshot.Network.Status}} ({{.Snapshot.Network.Type}}{{if .Snapshot.Network.SSID}} {{.Snapshot.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Snapshot.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{utc .Snapshot.StartTime}}</td></tr>
<tr><th>Poll</th><td>{{.Snapshot.Config.PollMs}}ms</td></tr>
<tr><th>Short max</th><td>{{.Snapshot.Config.ShortMaxMs}}ms</td></tr>
<tr><th>Long min</th><td>{{.Snapshot.Config.LongMinMs}}ms</td></tr>
<tr><th>Double gap</th><td>{{.Snapshot.Config.DoubleGapMs}}ms</td></tr>
<tr><th>Pulse</th><td>{{.Snapshot.Config.PulseMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Snapshot.Config.HeartbeatMs 0}}disabled{{else}}{{.Snapshot.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Snapshot.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/actions">Actions</a> | <a href="/index.json">JSON</a></p>
{{if .Live}}
<script>
(function() {
  var dot = document.getElementById("live-dot");
  var recent = document.getElementById("recent");

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  function addRow(ev) {
    var row = recent.insertRow(1);
    [ev.timestamp, ev.channel, ev.gesture, ev.duration_ms + "ms", ev.relay].forEach(function(v) {
      row.insertCell().textContent = v;
    });
    while (recent.rows.length > 21) {
      recent.deleteRow(recent.rows.length - 1);
    }
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "/ws");
    ws.onopen = function() { setDot("ok", "live"); };
    ws.onclose = function() {
      setDot("err", "offline");
      setTimeout(connect, 5000);
    };
    ws.onmessage = function(m) {
      try {
        var msg = JSON.parse(m.data);
        if (msg.type === "gesture") {
          addRow(msg.data);
        }
      } catch (e) {}
    };
  }
  connect();
})();
</script>
{{end}}
</body>
</html>
`

const actionsHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Keyless Relay Actions</title>
` + styleCSS + `
</head>
<body>
<h1>Actions</h1>
{{if .Message}}<p class="saved">{{.Message}}</p>{{end}}
{{range .Problems}}<p class="error">{{.}}</p>
{{end}}
<form method="post" action="/actions">
<table>
<tr><th>Ch</th>{{range .Gestures}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr><td>{{.Channel}}</td>{{range .Cells}}<td><select name="{{.Name}}">
<option value="none"{{if eq .Current -1}} selected{{end}}>None</option>
{{$cur := .Current}}{{range $.Relays}}<option value="{{.}}"{{if eq $cur .}} selected{{end}}>Relay {{.}}</option>
{{end}}</select></td>{{end}}</tr>
{{end}}</table>
<button type="submit">Save</button>
</form>
<p><a href="/">Status</a> | <a href="/api/actions">JSON</a></p>
</body>
</html>
`

type channelRow struct {
	Index  int
	Level  bool
	State  string
	Counts logic.GestureCounts
}

func renderIndex(w io.Writer, snap status.Snapshot, live bool) {
	rows := make([]channelRow, len(snap.Channels))
	for i, c := range snap.Channels {
		state := string(c.State)
		if state == "" {
			state = string(logic.StateIdle)
		}
		rows[i] = channelRow{Index: i, Level: c.Level, State: state, Counts: snap.Counts[i]}
	}
	data := struct {
		Snapshot status.Snapshot
		Channels []channelRow
		Uptime   time.Duration
		Live     bool
	}{
		Snapshot: snap,
		Channels: rows,
		Uptime:   snap.Uptime(),
		Live:     live,
	}
	indexTmpl.Execute(w, data)
}

type actionCell struct {
	Name    string
	Current int
}

type actionRow struct {
	Channel int
	Cells   []actionCell
}

func renderActions(w io.Writer, m *actions.Manager, message string, problems []string) {
	snap := m.Table().Snapshot()
	rows := make([]actionRow, logic.Channels)
	for ch := range rows {
		rows[ch].Channel = ch
		for _, g := range logic.Gestures {
			rows[ch].Cells = append(rows[ch].Cells, actionCell{
				Name:    formKey(ch, g),
				Current: int(snap[actions.Key{Channel: ch, Gesture: g}]),
			})
		}
	}
	relays := make([]int, m.Relays())
	for i := range relays {
		relays[i] = i
	}
	data := struct {
		Gestures []logic.Gesture
		Rows     []actionRow
		Relays   []int
		Message  string
		Problems []string
	}{
		Gestures: logic.Gestures[:],
		Rows:     rows,
		Relays:   relays,
		Message:  message,
		Problems: problems,
	}
	actionsTmpl.Execute(w, data)
}
