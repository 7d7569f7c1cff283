package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, "EURUSD", cfg.Symbol)
	assert.Equal(t, "USD", cfg.Account.Currency)
	assert.Equal(t, 0.01, cfg.Risk.RiskPerTrade)
	assert.Equal(t, 202406, cfg.Execution.Magic)
	assert.Equal(t, "SCALP", cfg.Execution.CommentPrefix)
	assert.Equal(t, 10*time.Second, cfg.Schedule.CycleInterval.Duration)
	assert.Equal(t, 60*time.Second, cfg.Schedule.OffSessionInterval.Duration)
	assert.NoError(t, cfg.Validate())
}

func TestMicro(t *testing.T) {
	cfg := Default().Micro()
	assert.Equal(t, "micro", cfg.Strategy.Name)
	assert.Equal(t, "S5", cfg.Strategy.FastTimeframe)
	assert.Equal(t, 0.1, cfg.Risk.FixedLot)
	assert.Equal(t, 0.5, cfg.Risk.ProfitTarget)
	assert.Equal(t, 50*time.Millisecond, cfg.Schedule.CycleInterval.Duration)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad currency", func(c *Config) { c.Account.Currency = "usd" }, "Currency"},
		{"negative balance", func(c *Config) { c.Account.Balance = -1 }, "Balance"},
		{"risk above one", func(c *Config) { c.Risk.RiskPerTrade = 1.5 }, "RiskPerTrade"},
		{"zero cap", func(c *Config) { c.Risk.MaxConcurrentPositions = 0 }, "MaxConcurrentPositions"},
		{"hour out of range", func(c *Config) { c.Session.EndHour = 24 }, "EndHour"},
		{"unknown strategy", func(c *Config) { c.Strategy.Name = "martingale" }, "Name"},
		{"unknown broker", func(c *Config) { c.Broker.Kind = "mt5" }, "Kind"},
		{"unknown symbol", func(c *Config) { c.Symbol = "BTCUSD" }, "symbol"},
		{"bad timeframe", func(c *Config) { c.Strategy.FastTimeframe = "M2" }, "fast_timeframe"},
		{"slow not slower", func(c *Config) { c.Strategy.SlowTimeframe = "M1" }, "slow_timeframe"},
		{"no stop without fixed lot", func(c *Config) { c.Risk.StopLossPips = 0 }, "stop_loss_pips"},
		{"zero cycle", func(c *Config) { c.Schedule.CycleInterval = Duration{} }, "cycle_interval"},
		{"oanda without token", func(c *Config) { c.Broker.Kind = "oanda" }, "OANDA_TOKEN"},
		{"backtest range reversed", func(c *Config) {
			c.Backtest.From = "2024-02-01"
			c.Backtest.To = "2024-01-01"
		}, "backtest.to"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbol: GBPUSD
risk:
  max_concurrent_positions: 2
session:
  start_hour: 22
  end_hour: 2
schedule:
  cycle_interval: 5s
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "GBPUSD", cfg.Symbol)
	assert.Equal(t, 2, cfg.Risk.MaxConcurrentPositions)
	assert.Equal(t, 22, cfg.Session.StartHour)
	assert.Equal(t, 5*time.Second, cfg.Schedule.CycleInterval.Duration)
	// untouched fields keep their defaults
	assert.Equal(t, 60*time.Second, cfg.Schedule.OffSessionInterval.Duration)
	assert.Equal(t, 202406, cfg.Execution.Magic)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalper.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
symbol = "USDJPY"

[strategy]
name = "micro"
fast_timeframe = "S5"
stddev_window = 5
max_stddev = 0.0005

[risk]
fixed_lot = 0.1
stop_loss_pips = 0

[schedule]
cycle_interval = "50ms"
`), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "USDJPY", cfg.Symbol)
	assert.Equal(t, "micro", cfg.Strategy.Name)
	assert.Equal(t, 50*time.Millisecond, cfg.Schedule.CycleInterval.Duration)
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalper.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0644))

	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scalper.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"risk": {"risk_per_trade": 0}}`), 0644))

	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "invalid config")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	for _, ext := range []string{".yaml", ".json", ".toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scalper"+ext)

			orig := Default()
			orig.Symbol = "AUDUSD"
			orig.Schedule.CycleInterval = Duration{3 * time.Second}
			orig.Broker.OANDA.Token = "secret"
			require.NoError(t, orig.SaveToFile(path))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotContains(t, string(data), "secret")

			got, err := LoadFromFile(path)
			require.NoError(t, err)
			assert.Equal(t, "AUDUSD", got.Symbol)
			assert.Equal(t, 3*time.Second, got.Schedule.CycleInterval.Duration)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OANDA_TOKEN", "tok")
	t.Setenv("OANDA_ACCOUNT_ID", "101-001-1-001")
	t.Setenv("SCALPER_BROKER", "oanda")
	t.Setenv("SCALPER_MAX_POSITIONS", "5")
	t.Setenv("SCALPER_CYCLE_INTERVAL", "2s")
	t.Setenv("SCALPER_RISK_PER_TRADE", "not-a-number")

	cfg := Default()
	ApplyEnv(cfg)

	assert.Equal(t, "tok", cfg.Broker.OANDA.Token)
	assert.Equal(t, "101-001-1-001", cfg.Broker.OANDA.AccountID)
	assert.Equal(t, "oanda", cfg.Broker.Kind)
	assert.Equal(t, 5, cfg.Risk.MaxConcurrentPositions)
	assert.Equal(t, 2*time.Second, cfg.Schedule.CycleInterval.Duration)
	assert.Equal(t, 0.01, cfg.Risk.RiskPerTrade)
	assert.NoError(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SCALPER_TEST_DOTENV=from-file\n"), 0644))
	t.Setenv("SCALPER_TEST_DOTENV", "")
	os.Unsetenv("SCALPER_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("SCALPER_TEST_DOTENV"))

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}

func TestBacktestRange(t *testing.T) {
	cfg := Default()
	cfg.Backtest.From = "2024-01-02"
	cfg.Backtest.To = "2024-01-05T12:00:00Z"

	from, to, err := cfg.BacktestRange()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC), to)
}
