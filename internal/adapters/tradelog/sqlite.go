// Package tradelog implements the append-only Trade Log (spec.md §2.5,
// §6) over a pure-Go SQLite database, the way the teacher's
// internal/adapters/storage package persists scan history — single
// writer connection, prepared statements, index on the time column.
package tradelog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/thecouncilaiglobal-coder/thecouncilai-bot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_ms      INTEGER NOT NULL,
	symbol     TEXT    NOT NULL,
	side       TEXT    NOT NULL,
	qty        REAL    NOT NULL,
	score      INTEGER NOT NULL,
	price_est  REAL,
	reason     TEXT,
	broker     TEXT,
	mode       TEXT
);
CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts_ms);
`

// Log persists trade entries to a SQLite file (trades.sqlite).
type Log struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("tradelog.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("tradelog.Open: apply schema: %w", err)
	}
	return &Log{db: db}, nil
}

// LogTrade inserts one executed-action row.
func (l *Log) LogTrade(entry domain.TradeLogEntry) error {
	_, err := l.db.Exec(
		`INSERT INTO trades(ts_ms, symbol, side, qty, score, price_est, reason, broker, mode)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.TsMs, entry.Symbol, string(entry.Side), entry.Qty, entry.Score,
		entry.PriceEst, entry.Reason, entry.Broker, entry.Mode,
	)
	if err != nil {
		return fmt.Errorf("tradelog.LogTrade: insert: %w", err)
	}
	return nil
}

// Recent returns the most recent n trades, newest first — used by the
// CLI's report mode.
func (l *Log) Recent(n int) ([]domain.TradeLogEntry, error) {
	rows, err := l.db.Query(
		`SELECT ts_ms, symbol, side, qty, score, price_est, reason, broker, mode
		 FROM trades ORDER BY ts_ms DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("tradelog.Recent: query: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeLogEntry
	for rows.Next() {
		var e domain.TradeLogEntry
		var side string
		var priceEst sql.NullFloat64
		if err := rows.Scan(&e.TsMs, &e.Symbol, &side, &e.Qty, &e.Score, &priceEst, &e.Reason, &e.Broker, &e.Mode); err != nil {
			return nil, fmt.Errorf("tradelog.Recent: scan: %w", err)
		}
		e.Side = domain.TradeSide(side)
		e.PriceEst = priceEst.Float64
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}
