package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/broker"
)

func newRunCmd(rc *rootConfig) *cobra.Command {
	var micro bool

	cmd := &cobra.Command{
		Use:   "run SYMBOL",
		Short: "Run the trading loop until interrupted",
		Long: `Run connects to the configured broker and trades SYMBOL on every cycle
inside the session window. With broker.kind=oanda orders go to the OANDA
account; with broker.kind=sim OANDA prices drive a local paper account.

Examples:
  scalper run EURUSD
  scalper run USDJPY --micro --config scalper.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := forSymbol(rc.cfg, args[0], micro)
			if err != nil {
				return err
			}
			log := rc.log.With().Str("broker", cfg.Broker.Kind).Logger()

			client, err := newOANDA(cfg, log)
			if err != nil {
				return err
			}

			var md broker.MarketData = client
			var gw broker.Gateway = client
			if cfg.Broker.Kind == "sim" {
				eng, j, err := newSim(cfg, log)
				if err != nil {
					return err
				}
				defer j.Close()
				md = &paper{md: client, eng: eng}
				gw = eng
			}

			b, err := newBot(cfg, md, gw, log)
			if err != nil {
				return err
			}
			if err := b.Run(cmd.Context()); err != nil {
				return fmt.Errorf("run %s: %w", cfg.Symbol, err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&micro, "micro", false, "Use the tick scalper variant (S5 bars, fixed lot, 50ms cycle)")
	return cmd
}
