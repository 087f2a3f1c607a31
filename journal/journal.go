// Package journal persists the trade ledger and equity curve. Two backends:
// CSV for quick inspection, SQLite for querying across runs.
package journal

import (
	"time"

	"tranche/signal"
)

type Status string

const (
	StatusOpen   Status = "OPEN"
	StatusClosed Status = "CLOSED"
)

// TradeRecord is one ledger row. Tranche entries are logged as OPEN rows
// with a zero exit; the full close writes a CLOSED row carrying realized
// PnL against the size-weighted average entry.
type TradeRecord struct {
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
	Status     Status
	Strategy   string
	Reason     string
}

// EquityPoint is one sample of account capital, one per processed bar in a
// replay or per poll in live mode.
type EquityPoint struct {
	Time    time.Time
	Symbol  string
	Capital float64
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordEquity(EquityPoint) error
	Close() error
}

// Discard drops every record. Backtests that only need the summary use it.
type Discard struct{}

func (Discard) RecordTrade(TradeRecord) error  { return nil }
func (Discard) RecordEquity(EquityPoint) error { return nil }
func (Discard) Close() error                   { return nil }
