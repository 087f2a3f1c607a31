package indicators

import (
	"tranche/market"
	"tranche/signal"
)

// RSIConfig drives the banded momentum reading. The bias latches when RSI
// crosses the midline with confirmation and only releases on the opposing
// trigger, so chop around 50 does not flip the gate every bar.
type RSIConfig struct {
	Period      int     `yaml:"period"`
	Midline     float64 `yaml:"midline"`
	Floor       float64 `yaml:"floor"` // bullish bias drops below this
	SlopePeriod int     `yaml:"slope_period"`
}

func RSIDefaults() RSIConfig {
	return RSIConfig{Period: 14, Midline: 50, Floor: 45, SlopePeriod: 5}
}

func (c RSIConfig) MinBars() int {
	return c.Period + c.SlopePeriod + 2
}

// RSISeries computes the Wilder RSI over closes. Leading slots before the
// warmup are zero.
func RSISeries(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	if len(closes) < period+1 || period <= 0 {
		return out
	}

	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}

	avgGain := wilder(gains[1:], period)
	avgLoss := wilder(losses[1:], period)

	for i := period; i < len(closes); i++ {
		g, l := avgGain[i-1], avgLoss[i-1]
		if l == 0 {
			out[i] = 100
			continue
		}
		rs := g / l
		out[i] = 100 - 100/(1+rs)
	}
	return out
}

// RSIBand replays the latch over the window and returns the final reading.
//
// Bullish arms when RSI crosses up through the midline while the short EMA of
// RSI is rising; it stands down once RSI sinks below the floor with the EMA
// falling, which simultaneously arms the bearish bias. Symmetric the other
// way.
func RSIBand(candles []market.Candle, cfg RSIConfig) (signal.MomentumBand, error) {
	if len(candles) < cfg.MinBars() {
		return signal.MomentumBand{}, &market.InsufficientDataError{Needed: cfg.MinBars(), Got: len(candles)}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	rsi := RSISeries(closes, cfg.Period)
	ema := EMA(rsi, cfg.SlopePeriod)

	ceiling := cfg.Midline + (cfg.Midline - cfg.Floor)

	var band signal.MomentumBand
	for i := cfg.Period + 1; i < len(rsi); i++ {
		rising := ema[i] > ema[i-1]

		switch {
		case rsi[i-1] <= cfg.Midline && rsi[i] > cfg.Midline && rising:
			band.Bullish, band.Bearish = true, false
		case rsi[i-1] >= cfg.Midline && rsi[i] < cfg.Midline && !rising:
			band.Bullish, band.Bearish = false, true
		case band.Bullish && rsi[i] < cfg.Floor && !rising:
			band.Bullish, band.Bearish = false, true
		case band.Bearish && rsi[i] > ceiling && rising:
			band.Bullish, band.Bearish = true, false
		}
	}

	band.Value = rsi[len(rsi)-1]
	return band, nil
}
