package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/scalper/broker"
)

const dealColumns = `deal_id, position_id, symbol, side, volume, open_price, close_price, profit, open_time, close_time, reason`

// GetDeal returns a single deal by ID.
func (j *SQLite) GetDeal(dealID string) (broker.Deal, error) {
	row := j.db.QueryRow(`SELECT `+dealColumns+` FROM deals WHERE deal_id = ?`, dealID)

	d, err := scanDeal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return broker.Deal{}, fmt.Errorf("deal %q not found", dealID)
	}
	return d, err
}

// DealsClosedBetween returns deals whose close_time is within [start, end).
func (j *SQLite) DealsClosedBetween(start, end time.Time) ([]broker.Deal, error) {
	rows, err := j.db.Query(`
		SELECT `+dealColumns+`
		FROM deals
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []broker.Deal
	for rows.Next() {
		d, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// StatsBetween aggregates the deals closed within [start, end).
func (j *SQLite) StatsBetween(start, end time.Time) (Stats, error) {
	var s Stats
	err := j.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN profit > 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN profit < 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN profit > 0 THEN profit ELSE 0 END), 0),
			COALESCE(-SUM(CASE WHEN profit < 0 THEN profit ELSE 0 END), 0),
			COALESCE(SUM(profit), 0)
		FROM deals
		WHERE close_time >= ? AND close_time < ?`, start.UTC(), end.UTC(),
	).Scan(&s.Trades, &s.Wins, &s.Losses, &s.GrossProfit, &s.GrossLoss, &s.NetPL)
	return s, err
}

// MaxDrawdownPct is the largest peak-to-trough equity decline, in percent,
// over the snapshots recorded within [start, end).
func (j *SQLite) MaxDrawdownPct(start, end time.Time) (float64, error) {
	rows, err := j.db.Query(`
		SELECT equity FROM equity
		WHERE time >= ? AND time < ?
		ORDER BY time ASC`, start.UTC(), end.UTC())
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var peak, maxDD float64
	for rows.Next() {
		var eq float64
		if err := rows.Scan(&eq); err != nil {
			return 0, err
		}
		if eq > peak {
			peak = eq
		}
		if peak > 0 {
			if dd := (peak - eq) / peak * 100; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeal(s scanner) (broker.Deal, error) {
	var d broker.Deal
	var side string
	err := s.Scan(
		&d.ID,
		&d.PositionID,
		&d.Symbol,
		&side,
		&d.Volume,
		&d.OpenPrice,
		&d.ClosePrice,
		&d.Profit,
		&d.OpenTime,
		&d.CloseTime,
		&d.Reason,
	)
	if err != nil {
		return broker.Deal{}, err
	}
	if side == broker.Sell.String() {
		d.Side = broker.Sell
	} else {
		d.Side = broker.Buy
	}
	return d, nil
}
