package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"tranche/config"
	"tranche/journal"
)

var rootCmd = &cobra.Command{
	Use:   "tranche",
	Short: "Tiered scale-in/scale-out trading engine",
	Long: `Tranche builds and unwinds directional positions in three risk-budgeted
tranches, driven by oscillator, momentum-band and price-action signals.

It provides tools for:
  - Replaying the strategy over historical candle data
  - Paper-trading the same decision logic on a polling loop
  - Journaling trades and equity curves to CSV or SQLite
  - Risk-based position sizing with leverage constraints`,
	SilenceUsage: true,
}

var cfgFile string

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgFile)
}

func buildLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewDevelopmentConfig()
	if cfg.JSON {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func buildJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "", "none":
		return journal.Discard{}, nil
	case "csv":
		trades, equity := cfg.TradesFile, cfg.EquityFile
		if trades == "" {
			trades = "trades.csv"
		}
		if equity == "" {
			equity = "equity.csv"
		}
		return journal.NewCSV(trades, equity)
	case "sqlite":
		path := cfg.DBPath
		if path == "" {
			path = "journal.db"
		}
		return journal.NewSQLite(path)
	default:
		return nil, fmt.Errorf("unknown journal type %q", cfg.Type)
	}
}
