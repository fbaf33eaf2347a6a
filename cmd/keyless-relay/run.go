package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/keyless-relay/internal/actions"
	"github.com/sweeney/keyless-relay/internal/config"
	"github.com/sweeney/keyless-relay/internal/gpio"
	"github.com/sweeney/keyless-relay/internal/idgen"
	"github.com/sweeney/keyless-relay/internal/logic"
	"github.com/sweeney/keyless-relay/internal/mqtt"
	"github.com/sweeney/keyless-relay/internal/natsbus"
	"github.com/sweeney/keyless-relay/internal/relay"
	"github.com/sweeney/keyless-relay/internal/status"
	"github.com/sweeney/keyless-relay/internal/store"
	"github.com/sweeney/keyless-relay/internal/web"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon (default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cfg, slog.Default())
	},
}

// eventSink receives every dispatched gesture in addition to MQTT.
type eventSink interface {
	Publish(event logic.Event) error
}

type namedSink struct {
	name string
	sink eventSink
}

// discardPublisher stands in for MQTT when no broker is configured.
type discardPublisher struct{}

func (discardPublisher) Publish(logic.Event) error           { return nil }
func (discardPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (discardPublisher) Close() error                        { return nil }

func run(cfg *config.Config, logger *slog.Logger) error {
	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.InputPins, cfg.GPIO.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio inputs: %w", err)
	}
	defer reader.Close()

	writer, err := gpio.NewRealWriter(cfg.GPIO.Chip, cfg.GPIO.RelayPins)
	if err != nil {
		return fmt.Errorf("init gpio relays: %w", err)
	}
	defer writer.Close()

	actuator := relay.NewActuator(writer, cfg.Pulse(), logger)
	table := actions.NewTable()
	manager := actions.NewManager(table, store.NewFileStore(cfg.Actions.File, logger), writer.Len(), logger)
	if err := manager.Load(); err != nil {
		// Run with an empty table rather than refusing to start.
		logger.Error("failed to load actions, starting with none configured", "error", err)
	}

	tracker := status.NewTracker(time.Now(), cfg.Status())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	var (
		publisher  mqtt.Publisher = discardPublisher{}
		mqttStatus mqtt.ConnectionStatus
	)
	if cfg.MQTT.Broker != "" {
		rp := mqtt.NewRealPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topics:   mqtt.NewTopics(cfg.MQTT.Prefix),
			OnCommand: func(c mqtt.ActionCommand) error {
				return manager.Apply(c.Channel, c.Gesture, c.Action)
			},
			Logger: logger,
		})
		// The loop only enqueues; a slow broker must not hold relays on.
		q := mqtt.NewQueuedPublisher(rp, mqtt.DefaultQueueSize, logger)
		defer q.Close()
		publisher = q
		mqttStatus = rp
	}

	var sinks []namedSink
	if cfg.NATS.URL != "" {
		np, err := natsbus.NewPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			logger.Error("nats unavailable, continuing without it", "error", err)
		} else {
			defer np.Close()
			sinks = append(sinks, namedSink{name: "nats", sink: np})
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.HTTP.Addr != "" {
		var hub *web.Hub
		if cfg.HTTP.Live {
			hub = web.NewHub(logger)
			go hub.Run(ctx)
			sinks = append(sinks, namedSink{name: "ws", sink: hub})
		}
		srv := web.New(cfg.HTTP.Addr, tracker, manager, hub, logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			srv.Shutdown(sctx)
		}()
		logger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startup := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startup); err != nil {
		logger.Warn("failed to publish startup event", "error", err)
	} else {
		logger.Info("published startup event")
	}

	logger.Info("started",
		"poll", cfg.Poll(),
		"short_max", cfg.Thresholds().ShortMax,
		"long_min", cfg.Thresholds().LongMin,
		"double_gap", cfg.Thresholds().DoubleGap,
		"pulse", cfg.Pulse(),
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat())

	ticker := time.NewTicker(cfg.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loopDeps{
		reader:     reader,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		sinks:      sinks,
		tracker:    tracker,
		table:      table,
		actuator:   actuator,
		thresholds: cfg.Thresholds(),
		heartbeat:  cfg.Heartbeat(),
		newID:      idgen.Event,
		logger:     logger,
	}, time.Now, ticker.C, sigCh)
}

type loopDeps struct {
	reader     gpio.Reader
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	sinks      []namedSink
	tracker    *status.Tracker
	table      relay.Lookup
	actuator   *relay.Actuator
	thresholds logic.Thresholds
	heartbeat  time.Duration
	newID      func() (string, error)
	logger     *slog.Logger
}

func runLoop(d loopDeps, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	logger := d.logger
	if logger == nil {
		logger = slog.Default()
	}
	startTime := now()
	detector := logic.NewDetector(d.thresholds, startTime)
	dispatcher := relay.NewDispatcher(d.table, d.actuator, logger)

	refresh := func() {
		if d.tracker == nil {
			return
		}
		d.tracker.Update(detector.CurrentState(), d.actuator.Energized(), detector.EventCountsSnapshot())
		if d.mqttStatus != nil {
			d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			logger.Info("shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    signalName,
				Retained:  true,
			}
			if d.tracker != nil {
				refresh()
				snap := d.tracker.Snapshot()
				event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", signalName)
			}
			if err := d.publisher.PublishSystem(event); err != nil {
				logger.Warn("failed to publish shutdown event", "error", err)
			} else {
				logger.Info("published shutdown event")
			}
			d.actuator.Release()
			return nil

		case <-tick:
			t := now()

			d.actuator.Expire(t)

			levels, err := d.reader.Read()
			if err != nil {
				logger.Error("gpio read error", "error", err)
				continue
			}
			if len(levels) < logic.Channels {
				logger.Error("gpio short read", "got", len(levels), "want", logic.Channels)
				continue
			}
			input := logic.Input{Time: t}
			copy(input.Levels[:], levels)

			for _, ev := range detector.Process(input) {
				if id, err := d.newID(); err != nil {
					logger.Warn("event id generation failed", "error", err)
				} else {
					ev.ID = id
				}
				ev = dispatcher.Dispatch(ev, t)

				logger.Info("gesture",
					"id", ev.ID,
					"channel", ev.Channel,
					"gesture", ev.Gesture.String(),
					"duration", ev.Duration,
					"relay", ev.Relay.String())

				if err := d.publisher.Publish(ev); err != nil {
					logger.Warn("publish error", "error", err)
				}
				for _, s := range d.sinks {
					if err := s.sink.Publish(ev); err != nil {
						logger.Warn("publish error", "sink", s.name, "error", err)
					}
				}
				if d.tracker != nil {
					d.tracker.RecordEvent(ev)
				}
			}

			if hb := detector.CheckHeartbeat(t, d.heartbeat); hb != nil {
				total := hb.Counts.Total()
				logger.Info("heartbeat",
					"uptime", hb.Uptime,
					"short", total.Short,
					"long", total.Long,
					"double", total.Double,
					"discarded", total.Discarded)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hb.Timestamp,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					refresh()
					hbEvent.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					logger.Warn("heartbeat publish error", "error", err)
				}
			}

			refresh()
		}
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
