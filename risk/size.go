package risk

import (
	"fmt"
	"math"
)

// Sizing is the full sizing decision for one trade. TotalSize and the tier
// sizes are in base units; RiskAmount and NotionalSize in quote currency.
type Sizing struct {
	TotalSize    float64
	Tier1Size    float64
	Tier2Size    float64
	Tier3Size    float64
	RiskAmount   float64
	Leverage     int
	NotionalSize float64
}

// MinNotionalError: the stop distance prices the trade below the venue's
// minimum order value, so the trade cannot be placed at the intended risk.
type MinNotionalError struct {
	NotionalSize    float64
	MinNotionalSize float64
	TotalSize       float64
	RiskAmount      float64
}

func (e *MinNotionalError) Error() string {
	return fmt.Sprintf("notional %.4f below venue minimum %.4f (size %.6f, risk %.2f)",
		e.NotionalSize, e.MinNotionalSize, e.TotalSize, e.RiskAmount)
}

// MarginAllocationError: the margin budget derived from the balance is zero
// or negative, so no leverage makes the trade fit.
type MarginAllocationError struct {
	MaxMarginAllowed float64
	Balance          float64
}

func (e *MarginAllocationError) Error() string {
	return fmt.Sprintf("margin budget %.4f unusable at balance %.2f", e.MaxMarginAllowed, e.Balance)
}

// LeverageExceededError: fitting the notional inside the margin budget would
// need more leverage than the account permits.
type LeverageExceededError struct {
	RequiredLeverage int
	MaxLeverage      int
	NotionalSize     float64
	MaxMarginAllowed float64
}

func (e *LeverageExceededError) Error() string {
	return fmt.Sprintf("required leverage %dx exceeds cap %dx (notional %.2f, margin budget %.2f)",
		e.RequiredLeverage, e.MaxLeverage, e.NotionalSize, e.MaxMarginAllowed)
}

// Size computes the tranche sizing for a trade entered at entry with a
// protective stop at stop, funded by balance.
//
// The risk budget is balance times MaxRiskPerTrade; total size is that budget
// divided by the per-unit loss at the stop. A degenerate stop (equal to
// entry) falls back to deploying 10% of balance as size, since per-unit risk
// is undefined. Leverage is the smallest whole multiplier that fits the
// notional inside the margin budget.
func Size(entry, stop, balance float64, p Params) (Sizing, error) {
	if entry <= 0 {
		return Sizing{}, fmt.Errorf("entry price %.4f must be positive", entry)
	}
	if balance <= 0 {
		return Sizing{}, fmt.Errorf("balance %.2f must be positive", balance)
	}

	riskAmount := balance * p.MaxRiskPerTrade
	riskPerUnit := math.Abs(entry - stop)

	var totalSize float64
	if riskPerUnit == 0 {
		totalSize = balance * 0.1
	} else {
		totalSize = riskAmount / riskPerUnit
	}

	notional := totalSize * entry
	if notional < p.MinNotionalSize {
		return Sizing{}, &MinNotionalError{
			NotionalSize:    notional,
			MinNotionalSize: p.MinNotionalSize,
			TotalSize:       totalSize,
			RiskAmount:      riskAmount,
		}
	}

	maxMargin := balance * p.MaxMarginAllocationPercent
	if maxMargin <= 0 {
		return Sizing{}, &MarginAllocationError{MaxMarginAllowed: maxMargin, Balance: balance}
	}

	leverage := int(math.Ceil(notional / maxMargin))
	if leverage < 1 {
		leverage = 1
	}
	if leverage > p.MaxLeverage {
		return Sizing{}, &LeverageExceededError{
			RequiredLeverage: leverage,
			MaxLeverage:      p.MaxLeverage,
			NotionalSize:     notional,
			MaxMarginAllowed: maxMargin,
		}
	}

	return Sizing{
		TotalSize:    totalSize,
		Tier1Size:    totalSize * p.Tier1Pct,
		Tier2Size:    totalSize * p.Tier2Pct,
		Tier3Size:    totalSize * p.Tier3Pct,
		RiskAmount:   riskAmount,
		Leverage:     leverage,
		NotionalSize: notional,
	}, nil
}
