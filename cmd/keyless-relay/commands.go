package main

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sweeney/keyless-relay/internal/actions"
	"github.com/sweeney/keyless-relay/internal/gpio"
	"github.com/sweeney/keyless-relay/internal/logic"
	"github.com/sweeney/keyless-relay/internal/store"
)

var printStateCmd = &cobra.Command{
	Use:   "print-state",
	Short: "Print the current input levels and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := gpio.NewRealReader(cfg.GPIO.Chip, cfg.GPIO.InputPins, cfg.GPIO.ActiveLow)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer reader.Close()

		levels, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatLevels(levels))
		return nil
	},
}

func formatLevels(levels []bool) string {
	parts := make([]string, len(levels))
	for i, on := range levels {
		s := "LOW"
		if on {
			s = "HIGH"
		}
		parts[i] = fmt.Sprintf("CH%d: %s", i, s)
	}
	return strings.Join(parts, ", ")
}

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "Show or edit the action table file",
	Long: `Show or edit the action table file.

A running daemon reads the file only at startup; use the web form, the HTTP
API, or the MQTT command topic to change it live.`,
}

var actionsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the action table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadManager()
		if err != nil {
			return err
		}
		return writeTable(cmd.OutOrStdout(), m.Table().Snapshot())
	},
}

var actionsSetCmd = &cobra.Command{
	Use:   "set <channel> <gesture> <relay|none>",
	Short: "Set the action for one channel and gesture",
	Example: `  keyless-relay actions set 0 short 1
  keyless-relay actions set 2 double none`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ch, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("channel %q: %w", args[0], actions.ErrInvalidChannel)
		}
		g, err := logic.ParseGesture(args[1])
		if err != nil {
			return err
		}
		a, err := logic.ParseAction(args[2])
		if err != nil {
			return err
		}

		m, err := loadManager()
		if err != nil {
			return err
		}
		if err := m.Apply(ch, g, a); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "channel %d %s -> %s\n", ch, g, a)
		return nil
	},
}

func loadManager() (*actions.Manager, error) {
	logger := slog.Default()
	m := actions.NewManager(actions.NewTable(), store.NewFileStore(cfg.Actions.File, logger), len(cfg.GPIO.RelayPins), logger)
	if err := m.Load(); err != nil {
		return nil, err
	}
	return m, nil
}

func writeTable(w io.Writer, m actions.Mapping) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHANNEL\tSHORT\tLONG\tDOUBLE")
	for ch := 0; ch < logic.Channels; ch++ {
		fmt.Fprintf(tw, "%d", ch)
		for _, g := range logic.Gestures {
			fmt.Fprintf(tw, "\t%s", m[actions.Key{Channel: ch, Gesture: g}])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := cfg.YAML()
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		cmd.OutOrStdout().Write(out)
		return nil
	},
}

func init() {
	actionsCmd.AddCommand(actionsShowCmd)
	actionsCmd.AddCommand(actionsSetCmd)
	configCmd.AddCommand(configShowCmd)
}
