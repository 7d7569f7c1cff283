// Package config loads the bot configuration once at startup. Files may be
// YAML, JSON or TOML; secrets and overrides come from the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/scalper/market"
	"github.com/rustyeddy/scalper/strategies"
)

type Config struct {
	Symbol    string          `json:"symbol" yaml:"symbol" toml:"symbol"`
	Account   AccountConfig   `json:"account" yaml:"account" toml:"account"`
	Strategy  StrategyConfig  `json:"strategy" yaml:"strategy" toml:"strategy"`
	Risk      RiskConfig      `json:"risk" yaml:"risk" toml:"risk"`
	Execution ExecutionConfig `json:"execution" yaml:"execution" toml:"execution"`
	Session   SessionConfig   `json:"session" yaml:"session" toml:"session"`
	Schedule  ScheduleConfig  `json:"schedule" yaml:"schedule" toml:"schedule"`
	Broker    BrokerConfig    `json:"broker" yaml:"broker" toml:"broker"`
	Backtest  BacktestConfig  `json:"backtest" yaml:"backtest" toml:"backtest"`
	Log       LogConfig       `json:"log" yaml:"log" toml:"log"`
}

// AccountConfig seeds the simulated account; live runs read the broker's.
type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency" toml:"currency" validate:"required,len=3,uppercase"`
	Balance  float64 `json:"balance" yaml:"balance" toml:"balance" validate:"gt=0"`
}

type StrategyConfig struct {
	Name              string  `json:"name" yaml:"name" toml:"name" validate:"oneof=trend micro"`
	FastTimeframe     string  `json:"fast_timeframe" yaml:"fast_timeframe" toml:"fast_timeframe" validate:"required"`
	SlowTimeframe     string  `json:"slow_timeframe" yaml:"slow_timeframe" toml:"slow_timeframe" validate:"required"`
	Bars              int     `json:"bars" yaml:"bars" toml:"bars" validate:"gte=1,lte=5000"`
	EMASpan           int     `json:"ema_span" yaml:"ema_span" toml:"ema_span" validate:"gte=1"`
	MomentumLag       int     `json:"momentum_lag" yaml:"momentum_lag" toml:"momentum_lag" validate:"gte=1"`
	MomentumThreshold float64 `json:"momentum_threshold" yaml:"momentum_threshold" toml:"momentum_threshold" validate:"gte=0"`
	ATRPeriod         int     `json:"atr_period" yaml:"atr_period" toml:"atr_period" validate:"gte=0"`
	MinATR            float64 `json:"min_atr" yaml:"min_atr" toml:"min_atr" validate:"gte=0"`
	StdDevWindow      int     `json:"stddev_window" yaml:"stddev_window" toml:"stddev_window" validate:"gte=0"`
	MaxStdDev         float64 `json:"max_stddev" yaml:"max_stddev" toml:"max_stddev" validate:"gte=0"`
}

type RiskConfig struct {
	RiskPerTrade           float64 `json:"risk_per_trade" yaml:"risk_per_trade" toml:"risk_per_trade" validate:"gt=0,lte=1"`
	MaxDailyLossFraction   float64 `json:"max_daily_loss_fraction" yaml:"max_daily_loss_fraction" toml:"max_daily_loss_fraction" validate:"gte=0,lte=1"`
	MaxConcurrentPositions int     `json:"max_concurrent_positions" yaml:"max_concurrent_positions" toml:"max_concurrent_positions" validate:"gte=1"`
	StopLossPips           float64 `json:"stop_loss_pips" yaml:"stop_loss_pips" toml:"stop_loss_pips" validate:"gte=0"`
	TakeProfitPips         float64 `json:"take_profit_pips" yaml:"take_profit_pips" toml:"take_profit_pips" validate:"gte=0"`
	PipValuePerLot         float64 `json:"pip_value_per_lot" yaml:"pip_value_per_lot" toml:"pip_value_per_lot" validate:"gt=0"`
	MinLot                 float64 `json:"min_lot" yaml:"min_lot" toml:"min_lot" validate:"gt=0"`
	LotPrecision           int32   `json:"lot_precision" yaml:"lot_precision" toml:"lot_precision" validate:"gte=0,lte=8"`
	FixedLot               float64 `json:"fixed_lot" yaml:"fixed_lot" toml:"fixed_lot" validate:"gte=0"`
	ProfitTarget           float64 `json:"profit_target" yaml:"profit_target" toml:"profit_target" validate:"gte=0"`
}

type ExecutionConfig struct {
	Magic           int    `json:"magic" yaml:"magic" toml:"magic" validate:"gte=0"`
	CommentPrefix   string `json:"comment_prefix" yaml:"comment_prefix" toml:"comment_prefix" validate:"max=16"`
	DeviationPoints int    `json:"deviation_points" yaml:"deviation_points" toml:"deviation_points" validate:"gte=0"`
}

// SessionConfig is the trading window in UTC hours, both ends inclusive.
type SessionConfig struct {
	StartHour int `json:"start_hour" yaml:"start_hour" toml:"start_hour" validate:"gte=0,lte=23"`
	EndHour   int `json:"end_hour" yaml:"end_hour" toml:"end_hour" validate:"gte=0,lte=23"`
}

type ScheduleConfig struct {
	CycleInterval      Duration `json:"cycle_interval" yaml:"cycle_interval" toml:"cycle_interval"`
	OffSessionInterval Duration `json:"off_session_interval" yaml:"off_session_interval" toml:"off_session_interval"`
}

type BrokerConfig struct {
	Kind  string      `json:"kind" yaml:"kind" toml:"kind" validate:"oneof=oanda sim"`
	OANDA OANDAConfig `json:"oanda" yaml:"oanda" toml:"oanda"`
	Sim   SimConfig   `json:"sim" yaml:"sim" toml:"sim"`
}

type OANDAConfig struct {
	Environment string   `json:"environment" yaml:"environment" toml:"environment" validate:"oneof=practice live"`
	AccountID   string   `json:"account_id,omitempty" yaml:"account_id,omitempty" toml:"account_id,omitempty"`
	Token       string   `json:"-" yaml:"-" toml:"-"`
	Timeout     Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
}

type SimConfig struct {
	SpreadPips  float64 `json:"spread_pips" yaml:"spread_pips" toml:"spread_pips" validate:"gte=0"`
	JournalPath string  `json:"journal_path" yaml:"journal_path" toml:"journal_path"`
}

// BacktestConfig describes the historical data to replay. Data is a CSV
// path; when empty the bars are downloaded from OANDA for [From, To).
type BacktestConfig struct {
	Data string `json:"data,omitempty" yaml:"data,omitempty" toml:"data,omitempty"`
	From string `json:"from,omitempty" yaml:"from,omitempty" toml:"from,omitempty"`
	To   string `json:"to,omitempty" yaml:"to,omitempty" toml:"to,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level" toml:"level" validate:"oneof=trace debug info warn error"`
	Format string `json:"format" yaml:"format" toml:"format" validate:"oneof=console json"`
}

// Duration reads and writes time.Duration as text such as "10s" or "50ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the trend scalper on EUR/USD against the paper broker.
func Default() *Config {
	p := strategies.TrendDefaults()
	return &Config{
		Symbol: "EURUSD",
		Account: AccountConfig{
			Currency: "USD",
			Balance:  10_000,
		},
		Strategy: StrategyConfig{
			Name:              "trend",
			FastTimeframe:     "M1",
			SlowTimeframe:     "M5",
			Bars:              100,
			EMASpan:           p.EMASpan,
			MomentumLag:       p.MomentumLag,
			MomentumThreshold: p.MomentumThreshold,
			ATRPeriod:         p.ATRPeriod,
			MinATR:            p.MinATR,
		},
		Risk: RiskConfig{
			RiskPerTrade:           0.01,
			MaxDailyLossFraction:   0.02,
			MaxConcurrentPositions: 3,
			StopLossPips:           5,
			TakeProfitPips:         10,
			PipValuePerLot:         100_000,
			MinLot:                 0.01,
			LotPrecision:           2,
		},
		Execution: ExecutionConfig{
			Magic:           202406,
			CommentPrefix:   "SCALP",
			DeviationPoints: 10,
		},
		Session: SessionConfig{StartHour: 7, EndHour: 17},
		Schedule: ScheduleConfig{
			CycleInterval:      Duration{10 * time.Second},
			OffSessionInterval: Duration{60 * time.Second},
		},
		Broker: BrokerConfig{
			Kind: "sim",
			OANDA: OANDAConfig{
				Environment: "practice",
				Timeout:     Duration{15 * time.Second},
			},
			Sim: SimConfig{
				SpreadPips:  1,
				JournalPath: ":memory:",
			},
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Micro switches c to the tick scalper: EMA(3) on S5 bars, a volatility
// ceiling, a fixed 0.1 lot, closes at a $0.50 move and a 50ms cycle.
func (c *Config) Micro() *Config {
	p := strategies.MicroDefaults()
	c.Strategy.Name = "micro"
	c.Strategy.FastTimeframe = "S5"
	c.Strategy.Bars = 10
	c.Strategy.EMASpan = p.EMASpan
	c.Strategy.MomentumLag = p.MomentumLag
	c.Strategy.MomentumThreshold = p.MomentumThreshold
	c.Strategy.StdDevWindow = p.StdDevWindow
	c.Strategy.MaxStdDev = p.MaxStdDev
	c.Risk.FixedLot = 0.1
	c.Risk.ProfitTarget = 0.5
	c.Risk.StopLossPips = 0
	c.Risk.TakeProfitPips = 0
	c.Schedule.CycleInterval = Duration{50 * time.Millisecond}
	return c
}

// LoadFromFile reads path on top of Default, picking the format from the
// extension, then applies environment overrides and validates.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Load returns Default when path is empty and LoadFromFile otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		ApplyEnv(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}
	return LoadFromFile(path)
}

// SaveToFile writes c in the format implied by the extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".toml":
		var b strings.Builder
		err = toml.NewEncoder(&b).Encode(c)
		data = []byte(b.String())
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field rules from the struct tags, then the rules that
// span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	if _, err := market.Lookup(c.Symbol); err != nil {
		return fmt.Errorf("symbol: %w", err)
	}
	fast, err := market.ParseTimeframe(c.Strategy.FastTimeframe)
	if err != nil {
		return fmt.Errorf("strategy.fast_timeframe: %w", err)
	}
	slow, err := market.ParseTimeframe(c.Strategy.SlowTimeframe)
	if err != nil {
		return fmt.Errorf("strategy.slow_timeframe: %w", err)
	}
	if c.Strategy.Name == "trend" {
		if slow.Duration() <= fast.Duration() {
			return fmt.Errorf("strategy.slow_timeframe %s must be longer than fast_timeframe %s", slow, fast)
		}
		if c.Strategy.ATRPeriod < 1 {
			return fmt.Errorf("strategy.atr_period must be positive for trend")
		}
	}
	if c.Strategy.Name == "micro" && c.Strategy.StdDevWindow < 2 {
		return fmt.Errorf("strategy.stddev_window must be at least 2 for micro")
	}
	if c.Risk.FixedLot == 0 && c.Risk.StopLossPips <= 0 {
		return fmt.Errorf("risk.stop_loss_pips must be positive unless risk.fixed_lot is set")
	}
	if c.Schedule.CycleInterval.Duration <= 0 {
		return fmt.Errorf("schedule.cycle_interval must be positive")
	}
	if c.Schedule.OffSessionInterval.Duration <= 0 {
		return fmt.Errorf("schedule.off_session_interval must be positive")
	}
	if c.Broker.Kind == "oanda" && (c.Broker.OANDA.Token == "" || c.Broker.OANDA.AccountID == "") {
		return fmt.Errorf("broker.oanda needs OANDA_TOKEN and OANDA_ACCOUNT_ID")
	}
	if _, _, err := c.BacktestRange(); err != nil {
		return err
	}
	return nil
}

// Timeframes parses the strategy timeframes.
func (c *Config) Timeframes() (fast, slow market.Timeframe, err error) {
	if fast, err = market.ParseTimeframe(c.Strategy.FastTimeframe); err != nil {
		return
	}
	slow, err = market.ParseTimeframe(c.Strategy.SlowTimeframe)
	return
}

// BacktestRange parses backtest.from and backtest.to (RFC3339 or
// 2006-01-02). Either may be zero.
func (c *Config) BacktestRange() (from, to time.Time, err error) {
	if from, err = parseDate(c.Backtest.From); err != nil {
		return from, to, fmt.Errorf("backtest.from: %w", err)
	}
	if to, err = parseDate(c.Backtest.To); err != nil {
		return from, to, fmt.Errorf("backtest.to: %w", err)
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return from, to, fmt.Errorf("backtest.to must be after backtest.from")
	}
	return from, to, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}

// StrategyParams maps the strategy section onto evaluator tunables.
func (c *Config) StrategyParams() strategies.Params {
	return strategies.Params{
		EMASpan:           c.Strategy.EMASpan,
		MomentumLag:       c.Strategy.MomentumLag,
		MomentumThreshold: c.Strategy.MomentumThreshold,
		ATRPeriod:         c.Strategy.ATRPeriod,
		MinATR:            c.Strategy.MinATR,
		StdDevWindow:      c.Strategy.StdDevWindow,
		MaxStdDev:         c.Strategy.MaxStdDev,
	}
}
