package indicators

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tranche/market"
	"tranche/signal"
)

func candlesFrom(closes []float64) []market.Candle {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			Time:  t0.Add(time.Duration(i) * time.Hour),
			Open:  c,
			High:  c * 1.001,
			Low:   c * 0.999,
			Close: c,
		}
	}
	return out
}

func TestEMA(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		values []float64
		period int
		last   float64
	}{
		{"constant stays put", []float64{5, 5, 5, 5, 5, 5}, 3, 5},
		{"single value", []float64{7}, 3, 7},
		{"converges upward", []float64{1, 1, 1, 1, 10, 10, 10, 10, 10, 10, 10, 10}, 3, 10},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			out := EMA(tt.values, tt.period)
			require.Len(t, out, len(tt.values))
			assert.InDelta(t, tt.last, out[len(out)-1], 0.05)
		})
	}
}

func TestEMAEmpty(t *testing.T) {
	t.Parallel()
	assert.Empty(t, EMA(nil, 5))
}

func TestMACDShortWindow(t *testing.T) {
	t.Parallel()

	_, err := MACD(candlesFrom([]float64{1, 2, 3}), MACDDefaults())
	var ie *market.InsufficientDataError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, 3, ie.Got)
}

func TestMACDTrendSign(t *testing.T) {
	t.Parallel()

	// Steady uptrend: fast EMA above slow, positive histogram.
	up := make([]float64, 60)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	osc, err := MACD(candlesFrom(up), MACDDefaults())
	require.NoError(t, err)
	assert.Positive(t, osc.Value)
	assert.Positive(t, osc.Histogram)

	down := make([]float64, 60)
	for i := range down {
		down[i] = 200 - float64(i)
	}
	osc, err = MACD(candlesFrom(down), MACDDefaults())
	require.NoError(t, err)
	assert.Negative(t, osc.Value)
	assert.Negative(t, osc.Histogram)
}

func TestMACDSlopeReversalFlags(t *testing.T) {
	t.Parallel()

	// Ramp up then flatten hard: histogram momentum rolls over.
	closes := make([]float64, 0, 70)
	for i := 0; i < 50; i++ {
		closes = append(closes, 100+float64(i)*2)
	}
	for i := 0; i < 20; i++ {
		closes = append(closes, 198)
	}
	osc, err := MACD(candlesFrom(closes), MACDDefaults())
	require.NoError(t, err)
	assert.False(t, osc.FallingToRising)
}

func TestRSISeriesBounds(t *testing.T) {
	t.Parallel()

	closes := []float64{44, 44.3, 44.1, 43.6, 44.3, 44.8, 45.1, 45.4, 45.8, 46.1,
		45.9, 46.3, 46.8, 46.5, 46.0, 46.4, 46.2, 45.6, 46.2, 46.2}
	rsi := RSISeries(closes, 14)
	for i := 14; i < len(rsi); i++ {
		assert.GreaterOrEqual(t, rsi[i], 0.0)
		assert.LessOrEqual(t, rsi[i], 100.0)
	}
}

func TestRSISeriesAllGains(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	rsi := RSISeries(closes, 14)
	assert.InDelta(t, 100.0, rsi[len(rsi)-1], 1e-9)
}

func TestRSIBandLatch(t *testing.T) {
	t.Parallel()

	// Decline then a sustained rally: RSI crosses up through the midline with
	// a rising EMA and the bullish bias should latch.
	closes := make([]float64, 0, 60)
	p := 100.0
	for i := 0; i < 25; i++ {
		p *= 0.995
		closes = append(closes, p)
	}
	for i := 0; i < 35; i++ {
		p *= 1.01
		closes = append(closes, p)
	}
	band, err := RSIBand(candlesFrom(closes), RSIDefaults())
	require.NoError(t, err)
	assert.True(t, band.Bullish)
	assert.False(t, band.Bearish)
	assert.Greater(t, band.Value, 50.0)
}

func TestRSIBandBearish(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 0, 60)
	p := 100.0
	for i := 0; i < 25; i++ {
		p *= 1.005
		closes = append(closes, p)
	}
	for i := 0; i < 35; i++ {
		p *= 0.99
		closes = append(closes, p)
	}
	band, err := RSIBand(candlesFrom(closes), RSIDefaults())
	require.NoError(t, err)
	assert.True(t, band.Bearish)
	assert.False(t, band.Bullish)
}

func TestRSIBandNeverBoth(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/4)
	}
	band, err := RSIBand(candlesFrom(closes), RSIDefaults())
	require.NoError(t, err)
	assert.False(t, band.Bullish && band.Bearish)
}

func TestPivotPoints(t *testing.T) {
	t.Parallel()

	// One clean peak at index 10, trough at 20, window wide enough for
	// confirmation on both sides.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100
	}
	closes[10] = 110
	closes[20] = 90
	candles := candlesFrom(closes)

	cfg := PivotConfig{LeftBars: 4, RightBars: 4}
	highs := pivotPoints(candles, cfg, true)
	lows := pivotPoints(candles, cfg, false)

	require.NotEmpty(t, highs)
	require.NotEmpty(t, lows)
	assert.InDelta(t, 110*1.001, highs[len(highs)-1], 1e-9)
	assert.InDelta(t, 90*0.999, lows[len(lows)-1], 1e-9)
}

func TestPriceActionBand(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100
	}
	closes[10] = 110
	closes[20] = 90
	closes[len(closes)-1] = 101

	pa, err := PriceAction(candlesFrom(closes), PivotConfig{LeftBars: 4, RightBars: 4})
	require.NoError(t, err)
	assert.Greater(t, pa.Resistance, pa.Support)
	assert.Equal(t, signal.Long, pa.Signal)
}

func TestPriceActionHigherHigh(t *testing.T) {
	t.Parallel()

	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100
	}
	closes[10] = 108
	closes[30] = 115
	pa, err := PriceAction(candlesFrom(closes), PivotConfig{LeftBars: 4, RightBars: 4})
	require.NoError(t, err)
	assert.True(t, pa.HigherHigh)
	assert.False(t, pa.LowerLow)
}

func TestCombinedSnapshot(t *testing.T) {
	t.Parallel()

	src := NewCombined(Defaults())

	closes := make([]float64, 80)
	p := 100.0
	for i := range closes {
		p *= 1.004
		closes[i] = p
	}
	candles := candlesFrom(closes)

	snap, err := src.Snapshot("BTCUSDT", candles)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", snap.Symbol)
	assert.Equal(t, candles[len(candles)-1].Time, snap.Time)
	assert.InDelta(t, closes[len(closes)-1], snap.Price, 1e-9)
	assert.Positive(t, snap.Osc.Histogram)
}

func TestCombinedSnapshotShortWindow(t *testing.T) {
	t.Parallel()

	src := NewCombined(Defaults())
	_, err := src.Snapshot("ETHUSDT", candlesFrom([]float64{1, 2, 3, 4}))
	var ie *market.InsufficientDataError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "ETHUSDT", ie.Symbol)
}
