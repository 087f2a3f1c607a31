// Package config loads and validates the process configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tranche/indicators"
	"tranche/risk"
)

// Config is the complete process configuration.
type Config struct {
	Account    AccountConfig     `json:"account" yaml:"account"`
	Risk       risk.Params       `json:"risk" yaml:"risk"`
	Indicators indicators.Config `json:"indicators" yaml:"indicators"`
	Trader     TraderConfig      `json:"trader" yaml:"trader"`
	Backtest   BacktestConfig    `json:"backtest" yaml:"backtest"`
	Journal    JournalConfig     `json:"journal" yaml:"journal"`
	Log        LogConfig         `json:"log" yaml:"log"`
}

type AccountConfig struct {
	Balance  float64 `json:"balance" yaml:"balance"`
	Currency string  `json:"currency" yaml:"currency"`
}

type TraderConfig struct {
	Symbols      []string `json:"symbols" yaml:"symbols"`
	Timeframe    string   `json:"timeframe" yaml:"timeframe"`
	PollInterval string   `json:"poll_interval" yaml:"poll_interval"` // e.g. "15s", "1m"
}

// Interval parses the polling cadence, defaulting to one minute.
func (t TraderConfig) Interval() (time.Duration, error) {
	if t.PollInterval == "" {
		return time.Minute, nil
	}
	return time.ParseDuration(t.PollInterval)
}

type BacktestConfig struct {
	InitialCapital float64           `json:"initial_capital" yaml:"initial_capital"`
	CommissionRate float64           `json:"commission_rate" yaml:"commission_rate"`
	DataDir        string            `json:"data_dir" yaml:"data_dir"`
	Files          map[string]string `json:"files" yaml:"files"` // symbol -> csv path
}

type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "csv", "sqlite" or "none"
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"` // zap level names
	JSON  bool   `json:"json" yaml:"json"`
}

// Default returns a runnable configuration for paper experiments.
func Default() *Config {
	return &Config{
		Account:    AccountConfig{Balance: 10000, Currency: "USDT"},
		Risk:       risk.DefaultParams(),
		Indicators: indicators.Defaults(),
		Trader: TraderConfig{
			Symbols:      []string{"BTCUSDT"},
			Timeframe:    "1h",
			PollInterval: "1m",
		},
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			CommissionRate: 0.001,
		},
		Journal: JournalConfig{Type: "none"},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadFromFile reads YAML (or JSON, by extension fallback) and validates.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account balance %.2f must be positive", c.Account.Balance)
	}
	if err := c.Risk.Validate(); err != nil {
		return fmt.Errorf("risk: %w", err)
	}
	if c.Backtest.InitialCapital <= 0 {
		return fmt.Errorf("backtest initial capital %.2f must be positive", c.Backtest.InitialCapital)
	}
	if c.Backtest.CommissionRate < 0 || c.Backtest.CommissionRate >= 1 {
		return fmt.Errorf("commission rate %.4f out of [0,1)", c.Backtest.CommissionRate)
	}
	switch strings.ToLower(c.Journal.Type) {
	case "", "none", "csv", "sqlite":
	default:
		return fmt.Errorf("unknown journal type %q", c.Journal.Type)
	}
	if _, err := c.Trader.Interval(); err != nil {
		return fmt.Errorf("poll interval: %w", err)
	}
	return nil
}
