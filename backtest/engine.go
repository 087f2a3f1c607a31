// Package backtest replays the tiered strategy bar-by-bar over historical
// series and derives performance statistics from the resulting ledger. The
// loop is single-threaded on purpose: determinism depends on every
// instrument seeing the same timestamp before any instrument advances.
package backtest

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"tranche/journal"
	"tranche/market"
	"tranche/pkg/id"
	"tranche/position"
	"tranche/signal"
)

type Config struct {
	InitialCapital float64
	CommissionRate float64 // per leg, fraction
	MinBars        int     // series shorter than this are dropped
	StrategyName   string
	Journal        journal.Journal // nil means discard
}

// Strategy is the decision surface the engine drives. *strategy.Tiered
// satisfies it.
type Strategy interface {
	Name() string
	ResolveRisk(symbol string, price float64, t time.Time) []position.Event
	OnBar(symbol string, candles []market.Candle, balance float64) ([]position.Event, error)
	CloseAll(symbol string, price float64, t time.Time, reason string) []position.Event
}

// Trade is one closed ledger row. Entry price is the commission-adjusted
// size-weighted average; exit price carries the exit leg's commission.
type Trade struct {
	TradeID    string
	Symbol     string
	Direction  signal.Direction
	Tier       int
	Quantity   float64
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64
	PnL        float64
	PnLPercent float64
	Reason     string
}

type Engine struct {
	cfg Config
	log *zap.Logger

	capital float64
	trades  []Trade
	curve   []float64

	books map[string]*book
}

// book tracks one instrument's commission-adjusted open exposure.
type book struct {
	dir       signal.Direction
	qty       float64
	cost      float64
	entryTime time.Time
}

func NewEngine(cfg Config, log *zap.Logger) *Engine {
	if cfg.Journal == nil {
		cfg.Journal = journal.Discard{}
	}
	return &Engine{
		cfg:   cfg,
		log:   log.With(zap.String("component", "backtest")),
		books: make(map[string]*book),
	}
}

// Run replays series through strat and returns the summary. A Summary is
// always returned; instruments with insufficient data are dropped and
// reported, never fatal.
func (e *Engine) Run(strat Strategy, series map[string]*market.Series) (Summary, error) {
	e.capital = e.cfg.InitialCapital
	e.trades = nil
	e.curve = nil

	usable, skipped := e.filter(series)

	summary := Summary{
		InitialCapital: e.cfg.InitialCapital,
		FinalCapital:   e.cfg.InitialCapital,
		Skipped:        skipped,
	}
	if len(usable) == 0 {
		return summary, nil
	}

	symbols := make([]string, 0, len(usable))
	for sym := range usable {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	index := commonIndex(usable)
	if len(index) == 0 {
		return summary, nil
	}

	for _, ts := range index {
		for _, sym := range symbols {
			e.step(strat, usable[sym], ts)
		}
		e.curve = append(e.curve, e.capital)
		e.recordEquity(journal.EquityPoint{Time: ts, Capital: e.capital})
	}

	// Realize everything before statistics.
	last := index[len(index)-1]
	for _, sym := range symbols {
		c, ok := usable[sym].At(last)
		if !ok {
			continue
		}
		for _, ev := range strat.CloseAll(sym, c.Close, last, "end_of_backtest") {
			e.apply(ev)
		}
	}
	e.curve = append(e.curve, e.capital)

	summary = Summarize(e.trades, e.cfg.InitialCapital)
	summary.Skipped = skipped
	summary.EquityCurve = e.curve
	summary.Start = index[0]
	summary.End = last
	return summary, nil
}

// Trades returns the closed ledger of the last run.
func (e *Engine) Trades() []Trade { return e.trades }

// Journal failures must not stop a replay; the in-memory ledger stays
// authoritative and the failure is logged.
func (e *Engine) recordTrade(t journal.TradeRecord) {
	if err := e.cfg.Journal.RecordTrade(t); err != nil {
		e.log.Warn("journal trade write failed", zap.String("symbol", t.Symbol), zap.Error(err))
	}
}

func (e *Engine) recordEquity(p journal.EquityPoint) {
	if err := e.cfg.Journal.RecordEquity(p); err != nil {
		e.log.Warn("journal equity write failed", zap.Error(err))
	}
}

func (e *Engine) filter(series map[string]*market.Series) (map[string]*market.Series, map[string]error) {
	usable := make(map[string]*market.Series)
	skipped := make(map[string]error)
	for sym, s := range series {
		if s == nil || s.Len() < e.cfg.MinBars {
			got := 0
			if s != nil {
				got = s.Len()
			}
			err := &market.InsufficientDataError{Symbol: sym, Needed: e.cfg.MinBars, Got: got}
			e.log.Warn("instrument dropped", zap.String("symbol", sym), zap.Error(err))
			skipped[sym] = err
			continue
		}
		usable[sym] = s
	}
	return usable, skipped
}

// step advances one instrument by one timestamp: standing risk first, then
// signals over the no-look-ahead window.
func (e *Engine) step(strat Strategy, s *market.Series, ts time.Time) {
	c, ok := s.At(ts)
	if !ok {
		return
	}

	for _, ev := range strat.ResolveRisk(s.Symbol, c.Close, ts) {
		e.apply(ev)
	}

	window := s.WindowTo(ts)
	events, err := strat.OnBar(s.Symbol, window, e.capital)
	if err != nil {
		// Warmup and other per-tick signal failures are advisory.
		e.log.Debug("bar skipped", zap.String("symbol", s.Symbol), zap.Time("ts", ts), zap.Error(err))
		return
	}
	for _, ev := range events {
		e.apply(ev)
	}
}

// apply books one position event into the commission-adjusted ledger.
func (e *Engine) apply(ev position.Event) {
	switch ev.Type {
	case position.TierEntry:
		e.applyEntry(ev)
	case position.TierExit:
		e.applyExit(ev)
	}
}

func (e *Engine) applyEntry(ev position.Event) {
	b, ok := e.books[ev.Symbol]
	if !ok || b.qty == 0 {
		b = &book{dir: ev.Direction, entryTime: ev.Time}
		e.books[ev.Symbol] = b
	}

	adj := ev.Quantity * (1 - e.cfg.CommissionRate)
	b.qty += adj
	b.cost += adj * ev.Price

	e.recordTrade(journal.TradeRecord{
		TradeID:    id.New(),
		Symbol:     ev.Symbol,
		Direction:  ev.Direction,
		Tier:       ev.Tier,
		Quantity:   adj,
		EntryTime:  ev.Time,
		EntryPrice: ev.Price,
		Status:     journal.StatusOpen,
		Strategy:   e.cfg.StrategyName,
		Reason:     ev.Reason,
	})
}

func (e *Engine) applyExit(ev position.Event) {
	b, ok := e.books[ev.Symbol]
	if !ok || b.qty <= 0 {
		return
	}

	closeQty := ev.Quantity * (1 - e.cfg.CommissionRate)
	if ev.FullClose || closeQty > b.qty {
		closeQty = b.qty
	}
	avg := b.cost / b.qty

	// Both legs pay commission: quantity was shaved at entry, the exit
	// leg adjusts its effective price against the position.
	effExit := ev.Price * (1 - e.cfg.CommissionRate*float64(b.dir))

	pnl := (effExit - avg) * float64(b.dir) * closeQty
	pnlPct := 0.0
	if avg > 0 {
		pnlPct = (effExit - avg) / avg * float64(b.dir) * 100
	}
	e.capital += pnl

	trade := Trade{
		TradeID:    id.New(),
		Symbol:     ev.Symbol,
		Direction:  b.dir,
		Tier:       ev.Tier,
		Quantity:   closeQty,
		EntryTime:  b.entryTime,
		EntryPrice: avg,
		ExitTime:   ev.Time,
		ExitPrice:  effExit,
		PnL:        pnl,
		PnLPercent: pnlPct,
		Reason:     ev.Reason,
	}
	e.trades = append(e.trades, trade)

	e.recordTrade(journal.TradeRecord{
		TradeID:    trade.TradeID,
		Symbol:     trade.Symbol,
		Direction:  trade.Direction,
		Tier:       trade.Tier,
		Quantity:   trade.Quantity,
		EntryTime:  trade.EntryTime,
		EntryPrice: trade.EntryPrice,
		ExitTime:   trade.ExitTime,
		ExitPrice:  trade.ExitPrice,
		PnL:        trade.PnL,
		PnLPercent: trade.PnLPercent,
		Status:     journal.StatusClosed,
		Strategy:   e.cfg.StrategyName,
		Reason:     trade.Reason,
	})

	b.qty -= closeQty
	b.cost -= avg * closeQty
	if ev.FullClose || b.qty <= 1e-12 {
		delete(e.books, ev.Symbol)
	}
}

// commonIndex returns the sorted timestamps present in every series, clipped
// to the overlap of all series' ranges.
func commonIndex(series map[string]*market.Series) []time.Time {
	var lo, hi time.Time
	first := true
	for _, s := range series {
		f, l := s.First().Time, s.Last().Time
		if first {
			lo, hi = f, l
			first = false
			continue
		}
		if f.After(lo) {
			lo = f
		}
		if l.Before(hi) {
			hi = l
		}
	}
	if hi.Before(lo) {
		return nil
	}

	counts := make(map[time.Time]int)
	for _, s := range series {
		for _, c := range s.Candles {
			if c.Time.Before(lo) || c.Time.After(hi) {
				continue
			}
			counts[c.Time]++
		}
	}

	var index []time.Time
	for ts, n := range counts {
		if n == len(series) {
			index = append(index, ts)
		}
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })
	return index
}
