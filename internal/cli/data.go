package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/market"
)

func newDataCmd(rc *rootConfig) *cobra.Command {
	var (
		tf   string
		from string
		to   string
		out  string
	)

	cmd := &cobra.Command{
		Use:   "data SYMBOL",
		Short: "Download OANDA bid bars to a backtest CSV",
		Long: `Data pages through the OANDA candles endpoint for [from, to) and writes
completed bid bars in the layout the backtest command reads.

Example:
  scalper data EURUSD --timeframe M1 --from 2024-01-02 --to 2024-01-06 -o eurusd-m1.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := *rc.cfg
			base.Backtest.From, base.Backtest.To = from, to
			cfg, err := forSymbol(&base, args[0], false)
			if err != nil {
				return err
			}
			start, end, err := cfg.BacktestRange()
			if err != nil {
				return err
			}
			if start.IsZero() || end.IsZero() {
				return errors.New("both --from and --to are required")
			}
			gran, err := market.ParseTimeframe(tf)
			if err != nil {
				return err
			}

			client, err := newOANDA(cfg, rc.log)
			if err != nil {
				return err
			}
			defer client.Close()

			bars, err := client.CandlesRange(cmd.Context(), cfg.Symbol, gran, start, end)
			if err != nil {
				return fmt.Errorf("download: %w", err)
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := market.WriteCandlesCSV(f, bars); err != nil {
				f.Close()
				return fmt.Errorf("write %s: %w", out, err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %d %s bars for %s to %s\n", len(bars), gran, cfg.Symbol, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&tf, "timeframe", "M1", "Bar granularity (S5, M1, M5, ...)")
	cmd.Flags().StringVar(&from, "from", "", "Start (2006-01-02 or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "End, exclusive")
	cmd.Flags().StringVarP(&out, "output", "o", "bars.csv", "Output CSV path")
	return cmd
}
