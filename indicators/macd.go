package indicators

import (
	"tranche/market"
	"tranche/signal"
)

// MACDConfig holds the fast/slow/signal EMA periods.
type MACDConfig struct {
	FastPeriod   int `yaml:"fast_period"`
	SlowPeriod   int `yaml:"slow_period"`
	SignalPeriod int `yaml:"signal_period"`
}

func MACDDefaults() MACDConfig {
	return MACDConfig{FastPeriod: 12, SlowPeriod: 26, SignalPeriod: 9}
}

// MinBars is the warmup needed before histogram slope flags are meaningful.
func (c MACDConfig) MinBars() int {
	return c.SlowPeriod + c.SignalPeriod + 2
}

// MACD computes the oscillator reading for the last bar of the window. The
// slope-reversal flags compare the last three histogram values: a reading
// with neither flag set while the histogram is extended is a peak.
func MACD(candles []market.Candle, cfg MACDConfig) (signal.Oscillator, error) {
	if len(candles) < cfg.MinBars() {
		return signal.Oscillator{}, &market.InsufficientDataError{Needed: cfg.MinBars(), Got: len(candles)}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	fast := EMA(closes, cfg.FastPeriod)
	slow := EMA(closes, cfg.SlowPeriod)

	macd := make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	sig := EMA(macd, cfg.SignalPeriod)

	n := len(closes) - 1
	hist := func(i int) float64 { return macd[i] - sig[i] }

	prevRising := hist(n-1) > hist(n-2)
	nowRising := hist(n) > hist(n-1)

	return signal.Oscillator{
		Value:           macd[n],
		Signal:          sig[n],
		Histogram:       hist(n),
		RisingToFalling: prevRising && !nowRising,
		FallingToRising: !prevRising && nowRising,
	}, nil
}
