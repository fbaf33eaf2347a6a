package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sweeney/keyless-relay/internal/config"
)

var (
	cfg     *config.Config
	cfgFile string
	v       = config.NewViper()
)

var rootCmd = &cobra.Command{
	Use:   "keyless-relay",
	Short: "RF remote gesture classifier and relay driver",
	Long: `keyless-relay samples four RF receiver outputs, classifies each press as
short, long, or double, and pulses the relay configured for that channel and
gesture. Gestures are published to MQTT (and optionally NATS) and shown on a
small status page.

With no subcommand it runs the daemon.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			if _, err := os.Stat(config.DefaultPath); err == nil {
				path = config.DefaultPath
			}
		}

		var err error
		cfg, err = config.Load(v, path)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level, _ := config.ParseLevel(cfg.LogLevel)
		setupLogging(level)
		if path != "" {
			slog.Debug("loaded config", "path", path)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

func setupLogging(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// bindFlag binds a persistent flag to a config key so the flag wins over the
// file and the environment when it is set.
func bindFlag(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default "+config.DefaultPath+" if present)")
	pf.String("log-level", "info", "log level: error|warn|info|debug")
	pf.String("broker", "", "MQTT broker URL (empty string in config disables MQTT)")
	pf.String("http", "", "HTTP status address")
	pf.String("nats", "", "NATS server URL for gesture fan-out")
	pf.String("actions-file", "", "action table file")

	bindFlag(v, "log_level", "log-level")
	bindFlag(v, "mqtt.broker", "broker")
	bindFlag(v, "http.addr", "http")
	bindFlag(v, "nats.url", "nats")
	bindFlag(v, "actions.file", "actions-file")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(printStateCmd)
	rootCmd.AddCommand(actionsCmd)
	rootCmd.AddCommand(configCmd)
}
