// Package cli is the scalper command tree.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/config"
	"github.com/rustyeddy/scalper/internal/logging"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// rootConfig is filled by the persistent pre-run and shared with every
// subcommand.
type rootConfig struct {
	ConfigPath string

	cfg *config.Config
	log zerolog.Logger
}

func NewRootCmd() *cobra.Command {
	rc := &rootConfig{}

	cmd := &cobra.Command{
		Use:           "scalper",
		Short:         "FX scalping bot: live trading loop and causal backtests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", "", "Path to config file (yaml, toml or json; optional)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Annotations["skipConfig"] == "true" {
			return nil
		}
		return rc.load()
	}

	cmd.AddCommand(
		newRunCmd(rc),
		newBacktestCmd(rc),
		newConfigCmd(rc),
		newDataCmd(rc),
		newJournalCmd(rc),
		newVersionCmd(),
	)
	return cmd
}

func (rc *rootConfig) load() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load(rc.ConfigPath)
	if err != nil {
		return err
	}
	rc.cfg = cfg
	rc.log = logging.New(cfg.Log)
	return nil
}

// Execute runs the command tree and exits non-zero on failure.
func Execute(ctx context.Context) {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
