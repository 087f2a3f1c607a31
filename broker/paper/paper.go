// Package paper is an in-memory broker fed by preloaded candle series. It
// backs dry runs and the trader's tests; fills are instant at the current
// mark price with no slippage.
package paper

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tranche/broker"
	"tranche/market"
	"tranche/pkg/id"
)

type Broker struct {
	mu       sync.Mutex
	log      *zap.Logger
	balance  float64
	series   map[string]*market.Series
	cursor   map[string]int // index of the current bar per symbol
	leverage map[string]int
}

func New(balance float64, log *zap.Logger) *Broker {
	return &Broker{
		log:      log.With(zap.String("component", "paper")),
		balance:  balance,
		series:   make(map[string]*market.Series),
		cursor:   make(map[string]int),
		leverage: make(map[string]int),
	}
}

// LoadSeries registers a symbol's historical bars and positions the mark at
// the last bar.
func (b *Broker) LoadSeries(s *market.Series) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.series[s.Symbol] = s
	b.cursor[s.Symbol] = s.Len() - 1
}

// Advance moves the symbol's mark to index i. Replays drive this.
func (b *Broker) Advance(symbol string, i int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor[symbol] = i
}

func (b *Broker) GetPrice(_ context.Context, symbol string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.series[symbol]
	if !ok || s.Empty() {
		return 0, fmt.Errorf("no market data for %s", symbol)
	}
	return s.Candles[b.cursor[symbol]].Close, nil
}

func (b *Broker) GetCandles(_ context.Context, symbol, _ string, limit int) ([]market.Candle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.series[symbol]
	if !ok || s.Empty() {
		return nil, &market.InsufficientDataError{Symbol: symbol, Needed: limit, Got: 0}
	}

	end := b.cursor[symbol] + 1
	start := end - limit
	if start < 0 {
		start = 0
	}
	return s.Candles[start:end], nil
}

func (b *Broker) CreateMarketOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.Fill, error) {
	price, err := b.GetPrice(ctx, req.Symbol)
	if err != nil {
		return broker.Fill{}, err
	}
	if req.Quantity <= 0 {
		return broker.Fill{}, fmt.Errorf("order quantity %.6f must be positive", req.Quantity)
	}

	fill := broker.Fill{
		OrderID:  id.New(),
		Symbol:   req.Symbol,
		Price:    price,
		Quantity: req.Quantity,
	}

	b.log.Info("order filled",
		zap.String("symbol", req.Symbol),
		zap.String("direction", req.Direction.String()),
		zap.Bool("reduce", req.Reduce),
		zap.Float64("quantity", req.Quantity),
		zap.Float64("price", price))

	return fill, nil
}

func (b *Broker) GetBalance(context.Context) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance, nil
}

// Settle applies realized PnL to the paper balance.
func (b *Broker) Settle(pnl float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance += pnl
}

func (b *Broker) SetLeverage(_ context.Context, symbol string, leverage int) error {
	if leverage < 1 {
		return fmt.Errorf("leverage %d must be >= 1", leverage)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.leverage[symbol] = leverage
	return nil
}

// Leverage reports the last value pinned for symbol, defaulting to 1.
func (b *Broker) Leverage(symbol string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.leverage[symbol]; ok {
		return l
	}
	return 1
}
