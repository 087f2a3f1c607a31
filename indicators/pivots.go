package indicators

import (
	"tranche/market"
	"tranche/signal"
)

// PivotConfig controls swing detection. A pivot high needs LeftBars higher
// bars on the left and RightBars on the right, so every pivot is confirmed
// RightBars after it prints; readings never look ahead.
type PivotConfig struct {
	LeftBars  int `yaml:"left_bars"`
	RightBars int `yaml:"right_bars"`
}

func PivotDefaults() PivotConfig {
	return PivotConfig{LeftBars: 8, RightBars: 8}
}

func (c PivotConfig) MinBars() int {
	return c.LeftBars + c.RightBars + 2
}

// PriceAction derives the support/resistance band from the last confirmed
// swing pivots and classifies trend and swing structure for the final bar.
func PriceAction(candles []market.Candle, cfg PivotConfig) (signal.PriceAction, error) {
	if len(candles) < cfg.MinBars() {
		return signal.PriceAction{}, &market.InsufficientDataError{Needed: cfg.MinBars(), Got: len(candles)}
	}

	highs := pivotPoints(candles, cfg, true)
	lows := pivotPoints(candles, cfg, false)

	var pa signal.PriceAction
	if len(highs) > 0 {
		pa.Resistance = highs[len(highs)-1]
	}
	if len(lows) > 0 {
		pa.Support = lows[len(lows)-1]
	}

	// Higher-high / lower-low structure needs two confirmed swings on a side.
	if len(highs) >= 2 && highs[len(highs)-1] > highs[len(highs)-2] {
		pa.HigherHigh = true
	}
	if len(lows) >= 2 && lows[len(lows)-1] < lows[len(lows)-2] {
		pa.LowerLow = true
	}

	last := candles[len(candles)-1].Close
	switch {
	case pa.Resistance > 0 && last > pa.Resistance:
		pa.Trend = signal.Long
	case pa.Support > 0 && last < pa.Support:
		pa.Trend = signal.Short
	}

	pa.Signal = classify(pa, last)
	return pa, nil
}

// classify turns the band position into an actionable direction. Long wants
// price holding above support in a non-bearish structure; Short mirrors it.
func classify(pa signal.PriceAction, last float64) signal.Direction {
	switch {
	case pa.Support > 0 && last > pa.Support && pa.Trend != signal.Short && !pa.LowerLow:
		return signal.Long
	case pa.Resistance > 0 && last < pa.Resistance && pa.Trend != signal.Long && !pa.HigherHigh:
		return signal.Short
	default:
		return signal.Neutral
	}
}

// pivotPoints returns confirmed pivot values in chronological order.
func pivotPoints(candles []market.Candle, cfg PivotConfig, high bool) []float64 {
	var out []float64
	for i := cfg.LeftBars; i < len(candles)-cfg.RightBars; i++ {
		v := candles[i].Low
		if high {
			v = candles[i].High
		}
		ok := true
		for j := i - cfg.LeftBars; j <= i+cfg.RightBars && ok; j++ {
			if j == i {
				continue
			}
			// Strict extremum: a tie means no confirmed swing.
			if high && candles[j].High >= v {
				ok = false
			}
			if !high && candles[j].Low <= v {
				ok = false
			}
		}
		if ok {
			out = append(out, v)
		}
	}
	return out
}
