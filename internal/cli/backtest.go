package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/backtest"
	"github.com/rustyeddy/scalper/config"
	"github.com/rustyeddy/scalper/market"
)

func newBacktestCmd(rc *rootConfig) *cobra.Command {
	var (
		micro bool
		data  string
		from  string
		to    string
	)

	cmd := &cobra.Command{
		Use:   "backtest SYMBOL",
		Short: "Replay historical bars through the bot and print the results",
		Long: `Backtest replays fast-timeframe bars for SYMBOL against the simulated
broker. Bars come from a CSV file (time,open,high,low,close[,volume]) or, when
no file is given, are downloaded from OANDA for the requested range.

Examples:
  scalper backtest EURUSD --data eurusd-m1.csv
  scalper backtest EURUSD --from 2024-01-02 --to 2024-01-06`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := *rc.cfg
			if data != "" {
				base.Backtest.Data = data
			}
			if from != "" {
				base.Backtest.From = from
			}
			if to != "" {
				base.Backtest.To = to
			}
			cfg, err := forSymbol(&base, args[0], micro)
			if err != nil {
				return err
			}

			res, err := runBacktest(cmd.Context(), cfg, rc)
			if err != nil {
				return err
			}
			res.Print(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().BoolVar(&micro, "micro", false, "Use the tick scalper variant")
	cmd.Flags().StringVar(&data, "data", "", "CSV file of fast-timeframe bars")
	cmd.Flags().StringVar(&from, "from", "", "Start of the replay (2006-01-02 or RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "End of the replay, exclusive")
	return cmd
}

func runBacktest(ctx context.Context, cfg *config.Config, rc *rootConfig) (backtest.Result, error) {
	log := rc.log.With().Str("mode", "backtest").Logger()

	fast, _, err := cfg.Timeframes()
	if err != nil {
		return backtest.Result{}, err
	}
	bars, err := loadBars(ctx, cfg, fast, rc)
	if err != nil {
		return backtest.Result{}, err
	}
	log.Info().Int("bars", len(bars)).Str("timeframe", fast.String()).Msg("bars loaded")

	eng, j, err := newSim(cfg, log)
	if err != nil {
		return backtest.Result{}, err
	}
	defer j.Close()

	feed, err := backtest.NewFeed(cfg.Symbol, fast, bars, eng)
	if err != nil {
		return backtest.Result{}, err
	}
	b, err := newBot(cfg, feed, eng, log)
	if err != nil {
		return backtest.Result{}, err
	}
	r, err := backtest.NewRunner(eng, feed, b, j, log)
	if err != nil {
		return backtest.Result{}, err
	}
	return r.Run(ctx)
}

func loadBars(ctx context.Context, cfg *config.Config, tf market.Timeframe, rc *rootConfig) ([]market.Candle, error) {
	from, to, err := cfg.BacktestRange()
	if err != nil {
		return nil, err
	}

	if cfg.Backtest.Data != "" {
		bars, err := market.LoadCandlesCSV(cfg.Backtest.Data, from, to)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.Backtest.Data, err)
		}
		return bars, nil
	}

	if from.IsZero() || to.IsZero() {
		return nil, errors.New("backtest needs --data or both --from and --to")
	}
	client, err := newOANDA(cfg, rc.log)
	if err != nil {
		return nil, fmt.Errorf("download bars: %w", err)
	}
	defer client.Close()
	return client.CandlesRange(ctx, cfg.Symbol, tf, from, to)
}
