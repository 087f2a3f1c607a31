// Package trader runs the live polling loop: one strategy, one broker, a
// fixed cadence. Each instrument's position is owned by this loop alone, so
// no locking happens around the lifecycle state.
package trader

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tranche/broker"
	"tranche/journal"
	"tranche/market"
	"tranche/pkg/id"
	"tranche/position"
	"tranche/strategy"
)

type Options struct {
	Symbols   []string
	Timeframe string
	Interval  time.Duration
	MinBars   int // bar window requested from the broker each tick
}

type Trader struct {
	log     *zap.Logger
	opts    Options
	broker  broker.Broker
	strat   *strategy.Tiered
	journal journal.Journal
}

func New(opts Options, b broker.Broker, strat *strategy.Tiered, j journal.Journal, log *zap.Logger) *Trader {
	if j == nil {
		j = journal.Discard{}
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	return &Trader{
		log:     log.With(zap.String("component", "trader")),
		opts:    opts,
		broker:  b,
		strat:   strat,
		journal: j,
	}
}

// Run polls until ctx is cancelled. Per-symbol failures are logged and
// retried next tick; only cancellation ends the loop.
func (t *Trader) Run(ctx context.Context) error {
	t.log.Info("trader started",
		zap.Strings("symbols", t.opts.Symbols),
		zap.String("timeframe", t.opts.Timeframe),
		zap.Duration("interval", t.opts.Interval))

	ticker := time.NewTicker(t.opts.Interval)
	defer ticker.Stop()

	t.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			t.log.Info("trader stopped")
			return ctx.Err()
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

// Tick runs one full evaluation pass. Exposed so tests and one-shot tools
// can drive the loop manually.
func (t *Trader) Tick(ctx context.Context) { t.tick(ctx) }

func (t *Trader) tick(ctx context.Context) {
	for _, sym := range t.opts.Symbols {
		if ctx.Err() != nil {
			return
		}
		if err := t.evaluate(ctx, sym); err != nil {
			t.log.Warn("tick failed", zap.String("symbol", sym), zap.Error(err))
		}
	}
}

func (t *Trader) evaluate(ctx context.Context, symbol string) error {
	price, err := t.broker.GetPrice(ctx, symbol)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	// Standing risk first: a tripped stop flattens before new signals run.
	for _, ev := range t.strat.ResolveRisk(symbol, price, now) {
		if err := t.execute(ctx, ev); err != nil {
			return err
		}
	}

	candles, err := t.broker.GetCandles(ctx, symbol, t.opts.Timeframe, t.opts.MinBars)
	if err != nil {
		return err
	}
	balance, err := t.broker.GetBalance(ctx)
	if err != nil {
		return err
	}

	events, err := t.strat.OnBar(symbol, candles, balance)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := t.execute(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

// execute turns one lifecycle event into venue orders and journal rows.
// Quantities go out on the instrument's step grid; off-grid sizes are
// rejected by real venues.
func (t *Trader) execute(ctx context.Context, ev position.Event) error {
	meta := market.Lookup(ev.Symbol)

	switch ev.Type {
	case position.TierEntry:
		qty := meta.QuantizeSize(ev.Quantity)
		if qty <= 0 || qty*ev.Price < meta.MinNotional {
			t.log.Warn("entry below venue minimum",
				zap.String("symbol", ev.Symbol),
				zap.Int("tier", ev.Tier),
				zap.Float64("quantity", qty),
				zap.Float64("min_notional", meta.MinNotional))
			return nil
		}
		if ev.Tier == 1 {
			if err := t.broker.SetLeverage(ctx, ev.Symbol, ev.Sizing.Leverage); err != nil {
				return err
			}
		}
		fill, err := t.broker.CreateMarketOrder(ctx, broker.MarketOrderRequest{
			Symbol:    ev.Symbol,
			Direction: ev.Direction,
			Quantity:  qty,
		})
		if err != nil {
			return err
		}
		return t.journal.RecordTrade(journal.TradeRecord{
			TradeID:    id.New(),
			Symbol:     ev.Symbol,
			Direction:  ev.Direction,
			Tier:       ev.Tier,
			Quantity:   fill.Quantity,
			EntryTime:  ev.Time,
			EntryPrice: fill.Price,
			Status:     journal.StatusOpen,
			Strategy:   t.strat.Name(),
			Reason:     ev.Reason,
		})

	case position.TierExit:
		qty := meta.QuantizeSize(ev.Quantity)
		if qty > 0 {
			if _, err := t.broker.CreateMarketOrder(ctx, broker.MarketOrderRequest{
				Symbol:    ev.Symbol,
				Direction: ev.Direction.Opposite(),
				Quantity:  qty,
				Reduce:    true,
			}); err != nil {
				return err
			}
		}
		status := journal.StatusOpen
		if ev.FullClose {
			status = journal.StatusClosed
		}
		return t.journal.RecordTrade(journal.TradeRecord{
			TradeID:    id.New(),
			Symbol:     ev.Symbol,
			Direction:  ev.Direction,
			Tier:       ev.Tier,
			Quantity:   qty,
			ExitTime:   ev.Time,
			ExitPrice:  ev.Price,
			PnL:        ev.PnL,
			PnLPercent: ev.PnLPercent,
			Status:     status,
			Strategy:   t.strat.Name(),
			Reason:     ev.Reason,
		})

	case position.SizingSkip:
		// Already surfaced through the notifier; nothing to submit.
	}
	return nil
}
