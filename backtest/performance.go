package backtest

import (
	"fmt"
	"io"
	"math"
	"time"
)

// Summary is the aggregate of one replay. Always produced, even for an
// empty or fully-skipped run.
type Summary struct {
	InitialCapital float64
	FinalCapital   float64

	Trades  int
	Winners int
	Losers  int

	WinRate      float64 // percent
	AvgWin       float64
	AvgLoss      float64
	AvgWinPct    float64
	AvgLossPct   float64
	ProfitFactor float64 // +Inf when no losers
	MaxDrawdown  float64 // percent
	TotalReturn  float64 // percent

	EquityCurve []float64
	Start, End  time.Time

	Skipped map[string]error
}

// Summarize derives the statistics from a closed-trade ledger. Drawdown is
// measured over the capital path after each closed trade, matching how the
// account would have marked realized equity.
func Summarize(trades []Trade, initialCapital float64) Summary {
	s := Summary{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
	}
	if len(trades) == 0 {
		return s
	}

	var sumWin, sumLoss, sumWinPct, sumLossPct, totalPnL float64
	path := make([]float64, 0, len(trades)+1)
	path = append(path, initialCapital)
	capital := initialCapital

	for _, t := range trades {
		totalPnL += t.PnL
		capital += t.PnL
		path = append(path, capital)

		if t.PnL > 0 {
			s.Winners++
			sumWin += t.PnL
			sumWinPct += t.PnLPercent
		} else if t.PnL < 0 {
			s.Losers++
			sumLoss += t.PnL
			sumLossPct += t.PnLPercent
		}
	}

	s.Trades = len(trades)
	s.FinalCapital = capital
	s.WinRate = float64(s.Winners) / float64(s.Trades) * 100

	if s.Winners > 0 {
		s.AvgWin = sumWin / float64(s.Winners)
		s.AvgWinPct = sumWinPct / float64(s.Winners)
	}
	if s.Losers > 0 {
		s.AvgLoss = sumLoss / float64(s.Losers)
		s.AvgLossPct = sumLossPct / float64(s.Losers)
		s.ProfitFactor = sumWin / math.Abs(sumLoss)
	} else if s.Winners > 0 {
		s.ProfitFactor = math.Inf(1)
	}

	s.MaxDrawdown = MaxDrawdown(path)
	if initialCapital > 0 {
		s.TotalReturn = totalPnL / initialCapital * 100
	}
	return s
}

// MaxDrawdown returns the deepest peak-to-trough decline over curve, as a
// percentage of the peak. The peak never decreases.
func MaxDrawdown(curve []float64) float64 {
	var peak, maxDD float64
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			if dd := (peak - v) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// PrintSummary writes the human-readable report.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w, "==================================================")
	fmt.Fprintln(w, " Backtest Result")
	fmt.Fprintln(w, "==================================================")

	if !s.Start.IsZero() {
		fmt.Fprintf(w, "Start:         %s\n", s.Start.Format(time.RFC3339))
		fmt.Fprintf(w, "End:           %s\n", s.End.Format(time.RFC3339))
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Trade Statistics")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Trades:        %d\n", s.Trades)
	fmt.Fprintf(w, "Wins:          %d\n", s.Winners)
	fmt.Fprintf(w, "Losses:        %d\n", s.Losers)
	fmt.Fprintf(w, "Win Rate:      %.2f%%\n", s.WinRate)
	if s.Winners > 0 {
		fmt.Fprintf(w, "Avg Win:       %.2f (%.2f%%)\n", s.AvgWin, s.AvgWinPct)
	}
	if s.Losers > 0 {
		fmt.Fprintf(w, "Avg Loss:      %.2f (%.2f%%)\n", s.AvgLoss, s.AvgLossPct)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Account Performance")
	fmt.Fprintln(w, "--------------------------------------------------")
	fmt.Fprintf(w, "Start Capital: %.2f\n", s.InitialCapital)
	fmt.Fprintf(w, "End Capital:   %.2f\n", s.FinalCapital)
	fmt.Fprintf(w, "Return:        %.2f%%\n", s.TotalReturn)
	if s.Trades > 0 {
		if math.IsInf(s.ProfitFactor, 1) {
			fmt.Fprintln(w, "Profit Factor: inf")
		} else {
			fmt.Fprintf(w, "Profit Factor: %.2f\n", s.ProfitFactor)
		}
	}
	fmt.Fprintf(w, "Max Drawdown:  %.2f%%\n", s.MaxDrawdown)

	if len(s.Skipped) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Skipped Instruments")
		fmt.Fprintln(w, "--------------------------------------------------")
		for sym, err := range s.Skipped {
			fmt.Fprintf(w, "- %s: %v\n", sym, err)
		}
	}

	fmt.Fprintln(w)
}
