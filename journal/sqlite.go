package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"

	"tranche/signal"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, symbol, direction, tier, quantity, entry_time, entry_price,
		 exit_time, exit_price, pnl, pnl_percent, status, strategy, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Symbol, t.Direction.String(), t.Tier, t.Quantity,
		t.EntryTime, t.EntryPrice, t.ExitTime, t.ExitPrice,
		t.PnL, t.PnLPercent, string(t.Status), t.Strategy, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquityPoint) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, symbol, capital) VALUES (?, ?, ?)`,
		e.Time, e.Symbol, e.Capital,
	)
	return err
}

// ListTrades returns the ledger for one symbol in entry order, or the whole
// ledger when symbol is empty.
func (j *SQLiteJournal) ListTrades(symbol string) ([]TradeRecord, error) {
	q := `SELECT trade_id, symbol, direction, tier, quantity, entry_time,
		entry_price, exit_time, exit_price, pnl, pnl_percent, status, strategy, reason
		FROM trades`
	args := []any{}
	if symbol != "" {
		q += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	q += ` ORDER BY entry_time`

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var dir, status string
		if err := rows.Scan(&t.TradeID, &t.Symbol, &dir, &t.Tier, &t.Quantity,
			&t.EntryTime, &t.EntryPrice, &t.ExitTime, &t.ExitPrice,
			&t.PnL, &t.PnLPercent, &status, &t.Strategy, &t.Reason); err != nil {
			return nil, err
		}
		t.Direction = parseDirection(dir)
		t.Status = Status(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func parseDirection(s string) signal.Direction {
	switch s {
	case "LONG":
		return signal.Long
	case "SHORT":
		return signal.Short
	default:
		return signal.Neutral
	}
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
