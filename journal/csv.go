package journal

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"
)

type CSVJournal struct {
	trades *csv.Writer
	equity *csv.Writer
	tf, ef *os.File
}

func NewCSV(tradesPath, equityPath string) (*CSVJournal, error) {
	tf, err := os.Create(tradesPath)
	if err != nil {
		return nil, err
	}
	ef, err := os.Create(equityPath)
	if err != nil {
		tf.Close()
		return nil, err
	}

	tw := csv.NewWriter(tf)
	ew := csv.NewWriter(ef)

	fail := func(err error) (*CSVJournal, error) {
		tf.Close()
		ef.Close()
		return nil, err
	}

	if err := tw.Write([]string{"trade_id", "symbol", "direction", "tier", "quantity",
		"entry_time", "entry_price", "exit_time", "exit_price",
		"pnl", "pnl_percent", "status", "strategy", "reason"}); err != nil {
		return fail(err)
	}
	if err := ew.Write([]string{"time", "symbol", "capital"}); err != nil {
		return fail(err)
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return fail(err)
	}
	ew.Flush()
	if err := ew.Error(); err != nil {
		return fail(err)
	}

	return &CSVJournal{tw, ew, tf, ef}, nil
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	exitTime := ""
	if !t.ExitTime.IsZero() {
		exitTime = t.ExitTime.Format(time.RFC3339)
	}
	if err := j.trades.Write([]string{
		t.TradeID,
		t.Symbol,
		t.Direction.String(),
		strconv.Itoa(t.Tier),
		f(t.Quantity),
		t.EntryTime.Format(time.RFC3339),
		f(t.EntryPrice),
		exitTime,
		f(t.ExitPrice),
		f(t.PnL),
		f(t.PnLPercent),
		string(t.Status),
		t.Strategy,
		t.Reason,
	}); err != nil {
		return err
	}
	j.trades.Flush()
	return j.trades.Error()
}

func (j *CSVJournal) RecordEquity(e EquityPoint) error {
	if err := j.equity.Write([]string{
		e.Time.Format(time.RFC3339),
		e.Symbol,
		f(e.Capital),
	}); err != nil {
		return err
	}
	j.equity.Flush()
	return j.equity.Error()
}

func (j *CSVJournal) Close() error {
	j.trades.Flush()
	if err := j.trades.Error(); err != nil {
		return err
	}
	j.equity.Flush()
	if err := j.equity.Error(); err != nil {
		return err
	}

	if err := j.tf.Close(); err != nil {
		return err
	}
	return j.ef.Close()
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
