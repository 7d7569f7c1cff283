package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rustyeddy/scalper/broker"
)

// MemoryDSN keeps the journal inside the process; nothing outlives the run.
const MemoryDSN = ":memory:"

type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and migrates) a journal at dsn. An empty dsn means MemoryDSN.
func NewSQLite(dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = MemoryDSN
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Every new connection to :memory: is a brand new database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordDeal(d broker.Deal) error {
	_, err := j.db.Exec(`
		INSERT INTO deals
		(deal_id, position_id, symbol, side, volume, open_price, close_price, profit, open_time, close_time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.PositionID, d.Symbol, d.Side.String(), d.Volume, d.OpenPrice,
		d.ClosePrice, d.Profit, d.OpenTime.UTC(), d.CloseTime.UTC(), d.Reason,
	)
	return err
}

func (j *SQLite) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, balance, equity) VALUES (?, ?, ?)`,
		e.Time.UTC(), e.Balance, e.Equity,
	)
	return err
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
