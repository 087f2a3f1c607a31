// Package position implements the tiered lifecycle of a single directional
// exposure: up to three scale-in tranches, three staged exits, one shared
// stop. One Position per instrument, owned by exactly one Machine.
package position

import (
	"fmt"
	"time"

	"tranche/signal"
)

// State is the coarse lifecycle phase. The tier flags carry the fine detail;
// State exists so the window after the tier-2 exit, where quantity is gone
// but the lifecycle has not formally closed, is explicit instead of implied.
type State int

const (
	StateNone State = iota
	StateOpen
	StatePartiallyClosedAwaitingFinalExit
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StatePartiallyClosedAwaitingFinalExit:
		return "awaiting_final_exit"
	default:
		return "none"
	}
}

// Position is the mutable per-instrument exposure record.
type Position struct {
	Symbol    string
	Direction signal.Direction
	State     State

	TierEntered  [3]bool
	TierExited   [3]bool
	EntryPrices  [3]float64
	TrancheSizes [3]float64

	EntryPrice        float64 // tier-1 fill, anchors the scale-in bands
	AverageEntryPrice float64
	StopLoss          float64
	RiskPerUnit       float64 // |tier-1 entry - initial stop|, frozen
	Leverage          int
	RiskAmount        float64

	TrailingStopActive bool
	OpenTime           time.Time

	RealizedPnL float64
}

// Reset wipes the position back to flat. Symbol survives.
func (p *Position) Reset() {
	*p = Position{Symbol: p.Symbol}
}

// OpenSize is the total entered-but-unexited quantity.
func (p *Position) OpenSize() float64 {
	var sz float64
	for i := range p.TrancheSizes {
		if p.TierEntered[i] && !p.TierExited[i] {
			sz += p.TrancheSizes[i]
		}
	}
	return sz
}

// recomputeAverage sets AverageEntryPrice to the size-weighted mean of all
// entered tranches. Exited tranches keep contributing: realized PnL is
// attributed against the full-position average.
func (p *Position) recomputeAverage() {
	var notional, size float64
	for i := range p.TrancheSizes {
		if p.TierEntered[i] {
			notional += p.EntryPrices[i] * p.TrancheSizes[i]
			size += p.TrancheSizes[i]
		}
	}
	if size > 0 {
		p.AverageEntryPrice = notional / size
	}
}

// RR is the current risk/reward multiple against the frozen tier-1 risk
// distance. Zero when the stop was degenerate.
func (p *Position) RR(price float64) float64 {
	if p.RiskPerUnit <= 0 || p.AverageEntryPrice <= 0 {
		return 0
	}
	move := (price - p.AverageEntryPrice) * float64(p.Direction)
	return move / p.RiskPerUnit
}

// CheckInvariants verifies the structural contract. Violations are defects,
// not runtime conditions; callers in tests fail fast on them.
func (p *Position) CheckInvariants() error {
	flat := p.Direction == signal.Neutral
	anyFlag := false
	for i := range p.TierEntered {
		anyFlag = anyFlag || p.TierEntered[i] || p.TierExited[i]
	}
	if flat != !anyFlag {
		return fmt.Errorf("%s: direction %v inconsistent with tier flags %v/%v",
			p.Symbol, p.Direction, p.TierEntered, p.TierExited)
	}
	if flat != (p.AverageEntryPrice == 0) {
		return fmt.Errorf("%s: direction %v inconsistent with average entry %.4f",
			p.Symbol, p.Direction, p.AverageEntryPrice)
	}
	for i := range p.TierExited {
		if p.TierExited[i] && !p.TierEntered[i] {
			return fmt.Errorf("%s: tier %d exited without entering", p.Symbol, i+1)
		}
	}
	for i := 1; i < 3; i++ {
		if p.TierEntered[i] && !p.TierEntered[i-1] {
			return fmt.Errorf("%s: tier %d entered before tier %d", p.Symbol, i+1, i)
		}
		if p.TierExited[i] && !p.TierExited[i-1] {
			return fmt.Errorf("%s: tier %d exited before tier %d", p.Symbol, i+1, i)
		}
	}
	return nil
}
