// Package data loads historical candle series from flat files.
//
// The expected layout is one CSV per instrument with a
// time,open,high,low,close[,volume] header. Files ending in .xz are
// decompressed on the fly; archived datasets compress 10-20x so we keep them
// that way on disk.
package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"tranche/market"
)

// LoadSeries reads a candle CSV (optionally .xz compressed) into a Series.
// Rows are sorted ascending by time after ingest; minBars below the loaded
// count yields an InsufficientDataError.
func LoadSeries(path, symbol, timeframe string, minBars int) (*market.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		src, err = xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open xz stream %s: %w", path, err)
		}
	}

	candles, err := readCandles(src)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	s := market.NewSeries(symbol, timeframe, candles)
	s.Sort()

	if s.Len() < minBars {
		return nil, &market.InsufficientDataError{Symbol: symbol, Needed: minBars, Got: s.Len()}
	}
	return s, nil
}

func readCandles(src io.Reader) ([]market.Candle, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	var candles []market.Candle
	first := true

	for {
		row, err := r.Read()
		if err == io.EOF {
			return candles, nil
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 0 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(row[0]), "time") {
				continue
			}
		}

		c, err := parseRow(row)
		if err != nil {
			return nil, err
		}
		candles = append(candles, c)
	}
}

func parseRow(row []string) (market.Candle, error) {
	if len(row) < 5 {
		return market.Candle{}, fmt.Errorf("bad row (need time,open,high,low,close): %v", row)
	}

	t, err := parseTime(strings.TrimSpace(row[0]))
	if err != nil {
		return market.Candle{}, fmt.Errorf("bad time %q: %w", row[0], err)
	}

	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i+1]), 64)
		if err != nil {
			return market.Candle{}, fmt.Errorf("bad price %q: %w", row[i+1], err)
		}
		vals[i] = v
	}

	c := market.Candle{
		Time:  t,
		Open:  vals[0],
		High:  vals[1],
		Low:   vals[2],
		Close: vals[3],
	}

	if len(row) > 5 {
		if v, err := strconv.ParseFloat(strings.TrimSpace(row[5]), 64); err == nil {
			c.Volume = v
		}
	}
	return c, nil
}

func parseTime(s string) (time.Time, error) {
	// RFC3339 preferred; unix seconds accepted for exported exchange dumps.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0).UTC(), nil
}
