package position

import (
	"time"

	"tranche/risk"
	"tranche/signal"
)

// EventType discriminates the transitions a Machine can emit in one tick.
type EventType int

const (
	TierEntry EventType = iota
	TierExit
	SizingSkip
)

func (t EventType) String() string {
	switch t {
	case TierEntry:
		return "tier_entry"
	case TierExit:
		return "tier_exit"
	case SizingSkip:
		return "sizing_skip"
	default:
		return "unknown"
	}
}

// Event is one state transition. Entries carry the sizing decision; exits
// carry the realized PnL of the closed quantity. A SizingSkip records an
// aborted entry with the sizer's refusal in Err.
type Event struct {
	Type      EventType
	Symbol    string
	Time      time.Time
	Direction signal.Direction
	Tier      int
	Reason    string

	Price    float64
	Quantity float64

	// Entry fields.
	Sizing   risk.Sizing
	StopLoss float64

	// Exit fields.
	PnL          float64
	PnLPercent   float64
	NewStopLoss  float64
	TrailingStop bool
	FullClose    bool

	Err error
}
