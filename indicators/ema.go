// Package indicators holds the calculators that feed the signal boundary.
// Everything here is batch-computed over a bar window so replays are
// deterministic; nothing keeps hidden state between calls.
package indicators

// EMA returns the exponential moving average series of values with the given
// period. Output[i] is NaN-free: the first period-1 slots carry the simple
// average seed, matching the common charting convention.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 || period <= 0 {
		return out
	}
	if period > len(values) {
		period = len(values)
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
		out[i] = sum / float64(i+1)
	}

	k := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1.0-k)
	}
	return out
}

// Wilder returns the Wilder-smoothed running average used by RSI.
func wilder(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period || period <= 0 {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	for i := period; i < len(values); i++ {
		out[i] = (out[i-1]*float64(period-1) + values[i]) / float64(period)
	}
	return out
}
