// Package config loads daemon settings from a YAML file, KEYLESS_* environment
// variables, and bound command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/keyless-relay/internal/gpio"
	"github.com/sweeney/keyless-relay/internal/logic"
	"github.com/sweeney/keyless-relay/internal/mqtt"
	"github.com/sweeney/keyless-relay/internal/natsbus"
	"github.com/sweeney/keyless-relay/internal/status"
	"github.com/sweeney/keyless-relay/internal/store"
)

// EnvPrefix prefixes environment overrides, e.g. KEYLESS_MQTT_BROKER.
const EnvPrefix = "KEYLESS"

// DefaultPath is where the daemon looks for its config file.
const DefaultPath = "/etc/keyless-relay/config.yaml"

type Config struct {
	LogLevel string        `mapstructure:"log_level" yaml:"log_level"`
	Timing   TimingConfig  `mapstructure:"timing" yaml:"timing"`
	GPIO     GPIOConfig    `mapstructure:"gpio" yaml:"gpio"`
	MQTT     MQTTConfig    `mapstructure:"mqtt" yaml:"mqtt"`
	NATS     NATSConfig    `mapstructure:"nats" yaml:"nats"`
	HTTP     HTTPConfig    `mapstructure:"http" yaml:"http"`
	Actions  ActionsConfig `mapstructure:"actions" yaml:"actions"`
}

// TimingConfig holds every interval in milliseconds.
type TimingConfig struct {
	PollMs      int `mapstructure:"poll_ms" yaml:"poll_ms"`
	ShortMaxMs  int `mapstructure:"short_max_ms" yaml:"short_max_ms"`
	LongMinMs   int `mapstructure:"long_min_ms" yaml:"long_min_ms"`
	DoubleGapMs int `mapstructure:"double_gap_ms" yaml:"double_gap_ms"`
	PulseMs     int `mapstructure:"pulse_ms" yaml:"pulse_ms"`
	HeartbeatMs int `mapstructure:"heartbeat_ms" yaml:"heartbeat_ms"` // 0 disables
}

type GPIOConfig struct {
	Chip      string `mapstructure:"chip" yaml:"chip"`
	InputPins []int  `mapstructure:"input_pins" yaml:"input_pins"`
	RelayPins []int  `mapstructure:"relay_pins" yaml:"relay_pins"`
	ActiveLow bool   `mapstructure:"active_low" yaml:"active_low"`
}

// MQTTConfig configures the broker connection. An empty Broker disables MQTT.
type MQTTConfig struct {
	Broker   string `mapstructure:"broker" yaml:"broker"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
	ClientID string `mapstructure:"client_id" yaml:"client_id"`
}

// NATSConfig configures optional event fan-out. An empty URL disables NATS.
type NATSConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	Subject string `mapstructure:"subject" yaml:"subject"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	Live bool   `mapstructure:"live" yaml:"live"`
}

type ActionsConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Timing: TimingConfig{
			PollMs:      10,
			ShortMaxMs:  int(logic.ShortPressMax.Milliseconds()),
			LongMinMs:   int(logic.LongPressMin.Milliseconds()),
			DoubleGapMs: int(logic.DoublePressGap.Milliseconds()),
			PulseMs:     int(logic.RelayPulseWidth.Milliseconds()),
			HeartbeatMs: int((15 * time.Minute).Milliseconds()),
		},
		GPIO: GPIOConfig{
			Chip:      gpio.DefaultChip,
			InputPins: append([]int(nil), gpio.DefaultInputPins...),
			RelayPins: append([]int(nil), gpio.DefaultRelayPins...),
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			Prefix:   mqtt.DefaultPrefix,
			ClientID: "keyless-relay",
		},
		NATS: NATSConfig{
			Subject: natsbus.DefaultSubject,
		},
		HTTP: HTTPConfig{
			Addr: ":80",
			Live: true,
		},
		Actions: ActionsConfig{
			File: store.DefaultPath,
		},
	}
}

// NewViper returns a viper instance with defaults and environment overrides
// registered. Callers may bind flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	d := DefaultConfig()

	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("timing.poll_ms", d.Timing.PollMs)
	v.SetDefault("timing.short_max_ms", d.Timing.ShortMaxMs)
	v.SetDefault("timing.long_min_ms", d.Timing.LongMinMs)
	v.SetDefault("timing.double_gap_ms", d.Timing.DoubleGapMs)
	v.SetDefault("timing.pulse_ms", d.Timing.PulseMs)
	v.SetDefault("timing.heartbeat_ms", d.Timing.HeartbeatMs)
	v.SetDefault("gpio.chip", d.GPIO.Chip)
	v.SetDefault("gpio.input_pins", d.GPIO.InputPins)
	v.SetDefault("gpio.relay_pins", d.GPIO.RelayPins)
	v.SetDefault("gpio.active_low", d.GPIO.ActiveLow)
	v.SetDefault("mqtt.broker", d.MQTT.Broker)
	v.SetDefault("mqtt.prefix", d.MQTT.Prefix)
	v.SetDefault("mqtt.client_id", d.MQTT.ClientID)
	v.SetDefault("nats.url", d.NATS.URL)
	v.SetDefault("nats.subject", d.NATS.Subject)
	v.SetDefault("http.addr", d.HTTP.Addr)
	v.SetDefault("http.live", d.HTTP.Live)
	v.SetDefault("actions.file", d.Actions.File)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path (if non-empty) into v and returns the validated result.
// A missing file at path is an error; pass "" to run on defaults.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error

	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	t := c.Timing
	if t.PollMs <= 0 {
		errs = append(errs, fmt.Errorf("timing.poll_ms must be > 0, got %d", t.PollMs))
	}
	if t.PulseMs <= 0 {
		errs = append(errs, fmt.Errorf("timing.pulse_ms must be > 0, got %d", t.PulseMs))
	}
	if t.HeartbeatMs < 0 {
		errs = append(errs, fmt.Errorf("timing.heartbeat_ms must be >= 0, got %d", t.HeartbeatMs))
	}
	if err := c.Thresholds().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("timing: %w", err))
	}
	if t.PollMs > 0 && t.ShortMaxMs > 0 && t.PollMs >= t.ShortMaxMs {
		errs = append(errs, fmt.Errorf("timing.poll_ms %d must be below short_max_ms %d", t.PollMs, t.ShortMaxMs))
	}

	g := c.GPIO
	if g.Chip == "" {
		errs = append(errs, errors.New("gpio.chip is required"))
	}
	if len(g.InputPins) != logic.Channels {
		errs = append(errs, fmt.Errorf("gpio.input_pins needs %d pins, got %d", logic.Channels, len(g.InputPins)))
	}
	if len(g.RelayPins) != logic.Channels {
		errs = append(errs, fmt.Errorf("gpio.relay_pins needs %d pins, got %d", logic.Channels, len(g.RelayPins)))
	}
	seen := make(map[int]string)
	for _, list := range []struct {
		name string
		pins []int
	}{{"input_pins", g.InputPins}, {"relay_pins", g.RelayPins}} {
		for _, p := range list.pins {
			if p < 0 {
				errs = append(errs, fmt.Errorf("gpio.%s: negative pin %d", list.name, p))
				continue
			}
			if prev, ok := seen[p]; ok {
				errs = append(errs, fmt.Errorf("gpio.%s: pin %d already used in %s", list.name, p, prev))
				continue
			}
			seen[p] = list.name
		}
	}

	if c.Actions.File == "" {
		errs = append(errs, errors.New("actions.file is required"))
	}

	return errors.Join(errs...)
}

// ParseLevel maps error|warn|info|debug to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return slog.LevelError, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q (want error|warn|info|debug)", s)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Thresholds returns the classifier windows.
func (c *Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{
		ShortMax:  ms(c.Timing.ShortMaxMs),
		LongMin:   ms(c.Timing.LongMinMs),
		DoubleGap: ms(c.Timing.DoubleGapMs),
	}
}

func (c *Config) Poll() time.Duration      { return ms(c.Timing.PollMs) }
func (c *Config) Pulse() time.Duration     { return ms(c.Timing.PulseMs) }
func (c *Config) Heartbeat() time.Duration { return ms(c.Timing.HeartbeatMs) }

// Status returns the subset shown on the status page and in system events.
func (c *Config) Status() status.Config {
	return status.Config{
		PollMs:      int64(c.Timing.PollMs),
		ShortMaxMs:  int64(c.Timing.ShortMaxMs),
		LongMinMs:   int64(c.Timing.LongMinMs),
		DoubleGapMs: int64(c.Timing.DoubleGapMs),
		PulseMs:     int64(c.Timing.PulseMs),
		HeartbeatMs: int64(c.Timing.HeartbeatMs),
		Broker:      c.MQTT.Broker,
		Prefix:      c.MQTT.Prefix,
		NATS:        c.NATS.URL,
		HTTPAddr:    c.HTTP.Addr,
	}
}

// YAML renders the config as it would appear in a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
