// Package signal defines the indicator-provider boundary. The trading core
// consumes these readings as read-only facts; it never recomputes them.
package signal

import (
	"time"

	"tranche/market"
)

// Direction: +1 long, -1 short, 0 neutral.
type Direction int8

const (
	Neutral Direction = 0
	Long    Direction = +1
	Short   Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "NONE"
	}
}

func (d Direction) Opposite() Direction { return -d }

// Oscillator is the momentum oscillator's reading for the current bar
// (histogram of a MACD-style fast/slow/signal stack). RisingToFalling and
// FallingToRising mark a slope reversal happening on this bar; both false at
// a sustained extremum means the histogram is peaking.
type Oscillator struct {
	Value           float64
	Signal          float64
	Histogram       float64
	RisingToFalling bool
	FallingToRising bool
}

// MomentumBand is the banded momentum provider's reading (RSI middle band).
// Bullish and Bearish latch between opposing triggers, so exactly one of
// them, or neither, is set.
type MomentumBand struct {
	Value   float64
	Bullish bool
	Bearish bool
}

// PriceAction is the pivot provider's reading: the last confirmed
// support/resistance band plus swing-structure pattern flags.
type PriceAction struct {
	Signal     Direction
	Trend      Direction
	Support    float64
	Resistance float64
	HigherHigh bool
	LowerLow   bool
}

// Snapshot bundles all three provider readings for one instrument at one
// tick.
type Snapshot struct {
	Symbol string
	Time   time.Time
	Price  float64
	Osc    Oscillator
	Band   MomentumBand
	PA     PriceAction
}

// Agree reports whether all three providers concur on d. Tier-1 entries
// require the conjunction, not a majority vote.
func (s Snapshot) Agree(d Direction) bool {
	switch d {
	case Long:
		return s.PA.Signal == Long && s.Band.Bullish && s.Osc.Histogram > 0
	case Short:
		return s.PA.Signal == Short && s.Band.Bearish && s.Osc.Histogram < 0
	default:
		return false
	}
}

// MomentumHolds reports whether the momentum gate for d is still intact
// (band bias plus histogram sign). Tier-2/3 entries are gated on this.
func (s Snapshot) MomentumHolds(d Direction) bool {
	switch d {
	case Long:
		return s.Band.Bullish && s.Osc.Histogram > 0
	case Short:
		return s.Band.Bearish && s.Osc.Histogram < 0
	default:
		return false
	}
}

// Source produces a Snapshot from a bar window. Implementations live at the
// edge (indicators package, test fakes); errors are per-tick advisory.
type Source interface {
	Snapshot(symbol string, candles []market.Candle) (Snapshot, error)
}
