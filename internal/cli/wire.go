package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/scalper/bot"
	"github.com/rustyeddy/scalper/broker"
	"github.com/rustyeddy/scalper/broker/oanda"
	"github.com/rustyeddy/scalper/broker/sim"
	"github.com/rustyeddy/scalper/config"
	"github.com/rustyeddy/scalper/execution"
	"github.com/rustyeddy/scalper/journal"
	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/risk"
	"github.com/rustyeddy/scalper/strategies"
)

// forSymbol applies the command-line symbol and variant on top of the
// loaded configuration and revalidates it.
func forSymbol(base *config.Config, symbol string, micro bool) (*config.Config, error) {
	cfg := *base
	if symbol != "" {
		cfg.Symbol = symbol
	}
	if micro {
		cfg.Micro()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// newBot wires the execution, risk and strategy components around md and gw.
func newBot(cfg *config.Config, md broker.MarketData, gw broker.Gateway, log zerolog.Logger) (*bot.Bot, error) {
	fast, slow, err := cfg.Timeframes()
	if err != nil {
		return nil, err
	}
	eval, err := strategies.ByName(cfg.Strategy.Name, cfg.StrategyParams())
	if err != nil {
		return nil, err
	}

	exec, err := execution.New(execution.Config{
		Symbol:          cfg.Symbol,
		Magic:           cfg.Execution.Magic,
		CommentPrefix:   cfg.Execution.CommentPrefix,
		DeviationPoints: cfg.Execution.DeviationPoints,
		StopLossPips:    cfg.Risk.StopLossPips,
		TakeProfitPips:  cfg.Risk.TakeProfitPips,
		LotUnits:        cfg.Risk.PipValuePerLot,
		AccountCurrency: cfg.Account.Currency,
	}, md, gw, log)
	if err != nil {
		return nil, err
	}

	mgr := risk.NewManager(cfg.Symbol, risk.Limits{
		MaxConcurrent:        cfg.Risk.MaxConcurrentPositions,
		MaxDailyLossFraction: cfg.Risk.MaxDailyLossFraction,
		ProfitTarget:         cfg.Risk.ProfitTarget,
	}, gw, exec, log)

	return bot.New(bot.Config{
		Symbol:             cfg.Symbol,
		FastTimeframe:      fast,
		SlowTimeframe:      slow,
		Bars:               cfg.Strategy.Bars,
		Session:            bot.Session{StartHour: cfg.Session.StartHour, EndHour: cfg.Session.EndHour},
		CycleInterval:      cfg.Schedule.CycleInterval.Duration,
		OffSessionInterval: cfg.Schedule.OffSessionInterval.Duration,
		AccountCurrency:    cfg.Account.Currency,
	}, bot.Components{
		MarketData: md,
		Gateway:    gw,
		Evaluator:  eval,
		Risk:       mgr,
		Executor:   exec,
		Sizing: risk.Sizing{
			RiskFraction:   cfg.Risk.RiskPerTrade,
			StopLossPips:   cfg.Risk.StopLossPips,
			PipValuePerLot: cfg.Risk.PipValuePerLot,
			MinLot:         cfg.Risk.MinLot,
			Precision:      cfg.Risk.LotPrecision,
			FixedLot:       cfg.Risk.FixedLot,
		},
	}, log)
}

func newOANDA(cfg *config.Config, log zerolog.Logger) (*oanda.Client, error) {
	o := cfg.Broker.OANDA
	if o.Token == "" || o.AccountID == "" {
		return nil, fmt.Errorf("OANDA_TOKEN and OANDA_ACCOUNT_ID must be set")
	}
	return oanda.NewClient(oanda.Config{
		Environment: o.Environment,
		AccountID:   o.AccountID,
		Token:       o.Token,
		Timeout:     o.Timeout.Duration,
		LotUnits:    cfg.Risk.PipValuePerLot,
	}, log)
}

func newSim(cfg *config.Config, log zerolog.Logger) (*sim.Engine, *journal.SQLite, error) {
	j, err := journal.NewSQLite(cfg.Broker.Sim.JournalPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open journal: %w", err)
	}
	eng := sim.NewEngine(sim.Config{
		Currency:   cfg.Account.Currency,
		Balance:    cfg.Account.Balance,
		SpreadPips: cfg.Broker.Sim.SpreadPips,
		LotUnits:   cfg.Risk.PipValuePerLot,
	}, j, log)
	return eng, j, nil
}

// paper feeds live broker prices into the simulated book. Every bar fetch
// also refreshes the quote so stops, targets and marks follow the market.
type paper struct {
	md  broker.MarketData
	eng *sim.Engine
}

func (p *paper) Candles(ctx context.Context, symbol string, tf market.Timeframe, count int) ([]market.Candle, error) {
	bars, err := p.md.Candles(ctx, symbol, tf, count)
	if err != nil {
		return nil, err
	}
	if _, err := p.Tick(ctx, symbol); err != nil {
		return nil, err
	}
	return bars, nil
}

func (p *paper) Tick(ctx context.Context, symbol string) (market.Tick, error) {
	t, err := p.md.Tick(ctx, symbol)
	if err != nil {
		return market.Tick{}, err
	}
	if err := p.eng.UpdateTick(t); err != nil {
		return market.Tick{}, err
	}
	return t, nil
}
