package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"tranche/broker/paper"
	"tranche/indicators"
	"tranche/market/data"
	"tranche/notify"
	"tranche/strategy"
	"tranche/trader"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Paper-trade the tiered strategy on a polling loop",
	Long: `Run drives the same decision logic as the backtest against a paper broker
on a fixed polling interval, journaling every tranche fill. Seed the paper
book with candle files so prices and history are available.

Example:
  tranche run -c config.yaml -f BTCUSDT=data/btcusdt_1h.csv`,
	RunE: runTrader,
}

var runFiles []string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", nil, "SYMBOL=path candle CSV seeding the paper book (repeatable)")
}

func runTrader(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := buildLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	j, err := buildJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer j.Close()

	b := paper.New(cfg.Account.Balance, log)
	for _, arg := range runFiles {
		sym, path, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("bad -f value %q, want SYMBOL=path", arg)
		}
		s, err := data.LoadSeries(path, sym, cfg.Trader.Timeframe, 1)
		if err != nil {
			return fmt.Errorf("load %s: %w", sym, err)
		}
		b.LoadSeries(s)
	}

	interval, err := cfg.Trader.Interval()
	if err != nil {
		return err
	}

	source := indicators.NewCombined(cfg.Indicators)
	strat := strategy.NewTiered(source, cfg.Risk, notify.NewLogNotifier(log), log)

	t := trader.New(trader.Options{
		Symbols:   cfg.Trader.Symbols,
		Timeframe: cfg.Trader.Timeframe,
		Interval:  interval,
		MinBars:   cfg.Indicators.MinBars(),
	}, b, strat, j, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := t.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
