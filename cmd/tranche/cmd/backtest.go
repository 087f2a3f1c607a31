package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tranche/backtest"
	"tranche/indicators"
	"tranche/market"
	"tranche/market/data"
	"tranche/notify"
	"tranche/strategy"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the tiered strategy over historical candle data",
	Long: `Backtest replays the scale-in/scale-out strategy bar by bar over one or
more candle CSV files and prints a performance summary.

Candle files carry a time,open,high,low,close[,volume] header; .xz compressed
files are read directly. Multiple instruments are replayed in lock-step over
their common timestamp range.

Example:
  tranche backtest -f BTCUSDT=data/btcusdt_1h.csv.xz -f ETHUSDT=data/ethusdt_1h.csv`,
	RunE: runBacktest,
}

var (
	btFiles      []string
	btCapital    float64
	btCommission float64
	btTimeframe  string
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringArrayVarP(&btFiles, "file", "f", nil, "SYMBOL=path candle CSV (repeatable)")
	backtestCmd.Flags().Float64Var(&btCapital, "capital", 0, "initial capital (overrides config)")
	backtestCmd.Flags().Float64Var(&btCommission, "commission", -1, "commission rate per leg (overrides config)")
	backtestCmd.Flags().StringVar(&btTimeframe, "timeframe", "1h", "timeframe label for loaded series")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	if btCapital > 0 {
		cfg.Backtest.InitialCapital = btCapital
	}
	if btCommission >= 0 {
		cfg.Backtest.CommissionRate = btCommission
	}

	files := cfg.Backtest.Files
	if len(btFiles) > 0 {
		files = make(map[string]string)
		for _, arg := range btFiles {
			sym, path, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("bad -f value %q, want SYMBOL=path", arg)
			}
			files[sym] = path
		}
	}
	if len(files) == 0 && cfg.Backtest.DataDir != "" {
		files = make(map[string]string)
		for _, sym := range cfg.Trader.Symbols {
			files[sym] = filepath.Join(cfg.Backtest.DataDir, strings.ToLower(sym)+".csv")
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no candle files: pass -f SYMBOL=path or set backtest.files in config")
	}

	minBars := cfg.Indicators.MinBars()
	series := make(map[string]*market.Series)
	for sym, path := range files {
		s, err := data.LoadSeries(path, sym, btTimeframe, minBars)
		if err != nil {
			var ie *market.InsufficientDataError
			if errors.As(err, &ie) {
				// Dropped, not fatal; the engine reports it in the summary.
				series[sym] = market.NewSeries(sym, btTimeframe, nil)
				continue
			}
			return fmt.Errorf("load %s: %w", sym, err)
		}
		series[sym] = s
	}

	j, err := buildJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	source := indicators.NewCombined(cfg.Indicators)
	strat := strategy.NewTiered(source, cfg.Risk, notify.NewLogNotifier(log), log)

	engine := backtest.NewEngine(backtest.Config{
		InitialCapital: cfg.Backtest.InitialCapital,
		CommissionRate: cfg.Backtest.CommissionRate,
		MinBars:        minBars,
		StrategyName:   strat.Name(),
		Journal:        j,
	}, log)

	summary, err := engine.Run(strat, series)
	if err != nil {
		return err
	}

	backtest.PrintSummary(os.Stdout, summary)
	return nil
}
