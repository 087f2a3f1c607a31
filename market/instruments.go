package market

import "github.com/shopspring/decimal"

// Instrument describes a trading pair and the quote currency's precision
// constraints. Immutable once loaded.
type Instrument struct {
	Symbol        string
	BaseCurrency  string
	QuoteCurrency string
	MinNotional   float64 // minimum order value in quote currency
	StepSize      float64 // minimum tranche increment in base units
	PricePrec     int
}

var Instruments = map[string]Instrument{
	"BTCUSDT": {
		Symbol:        "BTCUSDT",
		BaseCurrency:  "BTC",
		QuoteCurrency: "USDT",
		MinNotional:   5.0,
		StepSize:      0.001,
		PricePrec:     2,
	},
	"ETHUSDT": {
		Symbol:        "ETHUSDT",
		BaseCurrency:  "ETH",
		QuoteCurrency: "USDT",
		MinNotional:   5.0,
		StepSize:      0.01,
		PricePrec:     2,
	},
	"SOLUSDT": {
		Symbol:        "SOLUSDT",
		BaseCurrency:  "SOL",
		QuoteCurrency: "USDT",
		MinNotional:   5.0,
		StepSize:      0.1,
		PricePrec:     3,
	},
}

// Lookup returns the instrument metadata for symbol. Unknown symbols fall
// back to a permissive default so paper runs on arbitrary pairs still work.
func Lookup(symbol string) Instrument {
	if meta, ok := Instruments[symbol]; ok {
		return meta
	}
	return Instrument{Symbol: symbol, QuoteCurrency: "USDT", MinNotional: 5.0}
}

// QuantizeSize floors qty to the instrument's step size. Exchanges reject
// orders off the step grid, and float division drifts, so the rounding is
// done in decimal.
func (i Instrument) QuantizeSize(qty float64) float64 {
	if i.StepSize <= 0 {
		return qty
	}
	q := decimal.NewFromFloat(qty)
	step := decimal.NewFromFloat(i.StepSize)
	out, _ := q.Div(step).Floor().Mul(step).Float64()
	return out
}
