package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/config"
)

func newConfigCmd(rc *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate the file given with --config`,
	}

	var (
		output string
		micro  bool
	)
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Generate a default configuration file",
		Annotations: map[string]string{"skipConfig": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if micro {
				cfg.Micro()
			}
			if err := cfg.SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nEdit the file and run with:")
			fmt.Fprintf(out, "  scalper --config %s run %s\n", output, cfg.Symbol)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "scalper.yaml", "output config file path (.yaml, .toml or .json)")
	initCmd.Flags().BoolVar(&micro, "micro", false, "write the tick scalper defaults")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rc.cfg
			path := rc.ConfigPath
			if path == "" {
				path = "(defaults)"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Symbol:   %s\n", cfg.Symbol)
			fmt.Fprintf(out, "  Broker:   %s\n", cfg.Broker.Kind)
			fmt.Fprintf(out, "  Strategy: %s (%s/%s)\n", cfg.Strategy.Name, cfg.Strategy.FastTimeframe, cfg.Strategy.SlowTimeframe)
			fmt.Fprintf(out, "  Risk:     %.1f%% per trade, %d max open, %.1f%% daily loss\n",
				cfg.Risk.RiskPerTrade*100, cfg.Risk.MaxConcurrentPositions, cfg.Risk.MaxDailyLossFraction*100)
			fmt.Fprintf(out, "  Session:  %02d:00-%02d:59 UTC\n", cfg.Session.StartHour, cfg.Session.EndHour)
			return nil
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
