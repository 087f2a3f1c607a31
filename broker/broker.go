// Package broker is the venue boundary: prices, candles, balance, orders.
// The core never talks HTTP; it sees this interface and nothing else.
package broker

import (
	"context"

	"tranche/market"
	"tranche/signal"
)

// MarketOrderRequest is the only order shape the core submits. Partial fills
// are not modeled: an order either fills or the call errors.
type MarketOrderRequest struct {
	Symbol    string
	Direction signal.Direction
	Quantity  float64
	Reduce    bool // closes exposure instead of adding
}

// Fill is the terminal state of a market order.
type Fill struct {
	OrderID  string
	Symbol   string
	Price    float64
	Quantity float64
}

type Broker interface {
	// GetPrice returns the last traded price.
	GetPrice(ctx context.Context, symbol string) (float64, error)

	// GetCandles returns up to limit most recent bars for the timeframe,
	// oldest first. Fewer bars than the caller needs surface as a
	// market.InsufficientDataError.
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error)

	// CreateMarketOrder submits and returns the fill.
	CreateMarketOrder(ctx context.Context, req MarketOrderRequest) (Fill, error)

	GetBalance(ctx context.Context) (float64, error)

	// SetLeverage pins the account leverage for a symbol before entry.
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
