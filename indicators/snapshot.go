package indicators

import (
	"fmt"

	"tranche/market"
	"tranche/signal"
)

// Config aggregates all three provider configs.
type Config struct {
	MACD  MACDConfig  `yaml:"macd"`
	RSI   RSIConfig   `yaml:"rsi"`
	Pivot PivotConfig `yaml:"pivots"`
}

func Defaults() Config {
	return Config{MACD: MACDDefaults(), RSI: RSIDefaults(), Pivot: PivotDefaults()}
}

// MinBars is the warmup the slowest provider needs.
func (c Config) MinBars() int {
	n := c.MACD.MinBars()
	if m := c.RSI.MinBars(); m > n {
		n = m
	}
	if m := c.Pivot.MinBars(); m > n {
		n = m
	}
	return n
}

// Combined computes all three provider readings from one bar window. It is
// the production signal.Source.
type Combined struct {
	cfg Config
}

func NewCombined(cfg Config) *Combined {
	return &Combined{cfg: cfg}
}

var _ signal.Source = (*Combined)(nil)

func (c *Combined) Snapshot(symbol string, candles []market.Candle) (signal.Snapshot, error) {
	if len(candles) < c.cfg.MinBars() {
		return signal.Snapshot{}, &market.InsufficientDataError{Symbol: symbol, Needed: c.cfg.MinBars(), Got: len(candles)}
	}

	osc, err := MACD(candles, c.cfg.MACD)
	if err != nil {
		return signal.Snapshot{}, fmt.Errorf("%s oscillator: %w", symbol, err)
	}
	band, err := RSIBand(candles, c.cfg.RSI)
	if err != nil {
		return signal.Snapshot{}, fmt.Errorf("%s momentum band: %w", symbol, err)
	}
	pa, err := PriceAction(candles, c.cfg.Pivot)
	if err != nil {
		return signal.Snapshot{}, fmt.Errorf("%s price action: %w", symbol, err)
	}

	last := candles[len(candles)-1]
	return signal.Snapshot{
		Symbol: symbol,
		Time:   last.Time,
		Price:  last.Close,
		Osc:    osc,
		Band:   band,
		PA:     pa,
	}, nil
}
