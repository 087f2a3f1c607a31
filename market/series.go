package market

import (
	"fmt"
	"sort"
	"time"
)

// Series is an ordered per-instrument sequence of candles, oldest first.
type Series struct {
	Symbol    string
	Timeframe string
	Candles   []Candle
}

// InsufficientDataError reports a bar series too short for the requested
// computation. Callers branch on it with errors.As instead of treating the
// condition as fatal.
type InsufficientDataError struct {
	Symbol string
	Needed int
	Got    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: need %d bars, got %d", e.Symbol, e.Needed, e.Got)
}

func NewSeries(symbol, timeframe string, candles []Candle) *Series {
	return &Series{Symbol: symbol, Timeframe: timeframe, Candles: candles}
}

func (s *Series) Len() int    { return len(s.Candles) }
func (s *Series) Empty() bool { return len(s.Candles) == 0 }

func (s *Series) First() Candle { return s.Candles[0] }
func (s *Series) Last() Candle  { return s.Candles[len(s.Candles)-1] }

// Sort orders candles ascending by time. Loaders call it once after ingest so
// window lookups can binary search.
func (s *Series) Sort() {
	sort.Slice(s.Candles, func(i, j int) bool {
		return s.Candles[i].Time.Before(s.Candles[j].Time)
	})
}

// Clip returns the sub-series with start <= Time <= end. The underlying
// candle storage is shared, not copied.
func (s *Series) Clip(start, end time.Time) *Series {
	lo := sort.Search(len(s.Candles), func(i int) bool {
		return !s.Candles[i].Time.Before(start)
	})
	hi := sort.Search(len(s.Candles), func(i int) bool {
		return s.Candles[i].Time.After(end)
	})
	return &Series{Symbol: s.Symbol, Timeframe: s.Timeframe, Candles: s.Candles[lo:hi]}
}

// WindowTo returns all candles with Time <= t. This is the no-look-ahead
// slice handed to strategies during replay.
func (s *Series) WindowTo(t time.Time) []Candle {
	hi := sort.Search(len(s.Candles), func(i int) bool {
		return s.Candles[i].Time.After(t)
	})
	return s.Candles[:hi]
}

// At returns the candle at exactly t.
func (s *Series) At(t time.Time) (Candle, bool) {
	i := sort.Search(len(s.Candles), func(i int) bool {
		return !s.Candles[i].Time.Before(t)
	})
	if i < len(s.Candles) && s.Candles[i].Time.Equal(t) {
		return s.Candles[i], true
	}
	return Candle{}, false
}

// Closes extracts the close prices, oldest first.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}
