package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/risk"
)

func newJournalCmd(rc *rootConfig) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Query a paper trading journal",
		Long: `Query deals recorded by the simulated broker. Only useful when
broker.sim.journal_path points at a file instead of :memory:.

Subcommands:
  deal  - Show one deal by ID
  day   - List deals closed on a UTC day with their statistics

Examples:
  scalper journal deal 01HZX3J4Q6M8KX0V1T2R3S4P5N --db paper.sqlite
  scalper journal day 2024-01-15 --db paper.sqlite`,
	}
	cmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "path to the SQLite journal (default broker.sim.journal_path)")

	open := func() (*journal.SQLite, error) {
		path := dbPath
		if path == "" {
			path = rc.cfg.Broker.Sim.JournalPath
		}
		j, err := journal.NewSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return j, nil
	}

	dealCmd := &cobra.Command{
		Use:   "deal <deal-id>",
		Short: "Show one deal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			d, err := j.GetDeal(args[0])
			if err != nil {
				return fmt.Errorf("get deal: %w", err)
			}
			printDeals(cmd.OutOrStdout(), []broker.Deal{d})
			return nil
		},
	}

	dayCmd := &cobra.Command{
		Use:   "day <YYYY-MM-DD>",
		Short: "List deals closed on a UTC day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := time.Parse("2006-01-02", args[0])
			if err != nil {
				return fmt.Errorf("date: %w", err)
			}
			start := risk.DayStart(t)
			end := start.Add(24 * time.Hour)

			j, err := open()
			if err != nil {
				return err
			}
			defer j.Close()

			deals, err := j.DealsClosedBetween(start, end)
			if err != nil {
				return fmt.Errorf("query deals: %w", err)
			}
			stats, err := j.StatsBetween(start, end)
			if err != nil {
				return fmt.Errorf("query stats: %w", err)
			}

			out := cmd.OutOrStdout()
			printDeals(out, deals)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Trades: %d  Wins: %d  Losses: %d  Win Rate: %.2f%%  Net P/L: %.2f\n",
				stats.Trades, stats.Wins, stats.Losses, stats.WinRate(), stats.NetPL)
			return nil
		},
	}

	cmd.AddCommand(dealCmd, dayCmd)
	return cmd
}

func printDeals(w io.Writer, deals []broker.Deal) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSYMBOL\tSIDE\tLOTS\tOPEN\tCLOSE\tPROFIT\tCLOSED\tREASON")
	for _, d := range deals {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.5f\t%.5f\t%.2f\t%s\t%s\n",
			d.ID, d.Symbol, d.Side, d.Volume, d.OpenPrice, d.ClosePrice, d.Profit,
			d.CloseTime.UTC().Format(time.RFC3339), d.Reason)
	}
	tw.Flush()
}
