// Package risk owns position sizing: how much balance a trade may lose, how
// the total size splits into tranches, and whether the account's margin can
// carry the resulting notional.
package risk

import (
	"fmt"
	"math"
)

// Params are the account-level risk knobs. All percentages are fractions
// (0.01 means 1%).
type Params struct {
	MaxRiskPerTrade            float64 `yaml:"max_risk_per_trade"`
	MinNotionalSize            float64 `yaml:"min_notional_size"`
	MaxLeverage                int     `yaml:"max_leverage"`
	MaxMarginAllocationPercent float64 `yaml:"max_margin_allocation_percent"`

	Tier1Pct float64 `yaml:"tier1_pct"`
	Tier2Pct float64 `yaml:"tier2_pct"`
	Tier3Pct float64 `yaml:"tier3_pct"`

	TP1RiskReward float64 `yaml:"tp1_risk_reward"`
	TP2RiskReward float64 `yaml:"tp2_risk_reward"`
}

// DefaultParams mirrors a conservative intraday futures profile: risk 1% per
// trade, scale in 40/30/30, take profit at 1.5R and 2.5R.
func DefaultParams() Params {
	return Params{
		MaxRiskPerTrade:            0.01,
		MinNotionalSize:            5.0,
		MaxLeverage:                20,
		MaxMarginAllocationPercent: 0.25,
		Tier1Pct:                   0.4,
		Tier2Pct:                   0.3,
		Tier3Pct:                   0.3,
		TP1RiskReward:              1.5,
		TP2RiskReward:              2.5,
	}
}

func (p Params) Validate() error {
	if p.MaxRiskPerTrade <= 0 || p.MaxRiskPerTrade >= 1 {
		return fmt.Errorf("max_risk_per_trade %.4f out of (0,1)", p.MaxRiskPerTrade)
	}
	if p.MaxLeverage < 1 {
		return fmt.Errorf("max_leverage %d must be >= 1", p.MaxLeverage)
	}
	if p.MaxMarginAllocationPercent <= 0 || p.MaxMarginAllocationPercent > 1 {
		return fmt.Errorf("max_margin_allocation_percent %.4f out of (0,1]", p.MaxMarginAllocationPercent)
	}
	if sum := p.Tier1Pct + p.Tier2Pct + p.Tier3Pct; math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("tier percentages sum to %.6f, want 1", sum)
	}
	if p.Tier1Pct <= 0 || p.Tier2Pct <= 0 || p.Tier3Pct <= 0 {
		return fmt.Errorf("tier percentages must be positive")
	}
	if p.TP1RiskReward <= 0 || p.TP2RiskReward <= p.TP1RiskReward {
		return fmt.Errorf("take-profit ladder %0.2f/%0.2f must be ascending and positive",
			p.TP1RiskReward, p.TP2RiskReward)
	}
	return nil
}
