package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads a .env file into the process environment when present.
// Variables already set win over the file.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overwrites fields from the environment. OANDA credentials are only
// ever read from here.
func ApplyEnv(c *Config) {
	setStr(&c.Broker.OANDA.Token, "OANDA_TOKEN")
	setStr(&c.Broker.OANDA.AccountID, "OANDA_ACCOUNT_ID")

	setStr(&c.Symbol, "SCALPER_SYMBOL")
	setStr(&c.Broker.Kind, "SCALPER_BROKER")
	setStr(&c.Broker.OANDA.Environment, "SCALPER_OANDA_ENVIRONMENT")
	setStr(&c.Strategy.Name, "SCALPER_STRATEGY")
	setFloat64(&c.Risk.RiskPerTrade, "SCALPER_RISK_PER_TRADE")
	setFloat64(&c.Risk.MaxDailyLossFraction, "SCALPER_MAX_DAILY_LOSS")
	setInt(&c.Risk.MaxConcurrentPositions, "SCALPER_MAX_POSITIONS")
	setInt(&c.Session.StartHour, "SCALPER_SESSION_START")
	setInt(&c.Session.EndHour, "SCALPER_SESSION_END")
	setDuration(&c.Schedule.CycleInterval, "SCALPER_CYCLE_INTERVAL")
	setStr(&c.Backtest.Data, "SCALPER_BACKTEST_DATA")
	setStr(&c.Log.Level, "SCALPER_LOG_LEVEL")
	setStr(&c.Log.Format, "SCALPER_LOG_FORMAT")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
