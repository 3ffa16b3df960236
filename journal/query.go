package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// GetTrade returns a single trade record by ID.
func (j *SQLite) GetTrade(tradeID string) (TradeRecord, error) {
	row := j.db.QueryRow(`
		SELECT trade_id, symbol, side, units, entry_price, exit_price, stop_loss, take_profit,
		       open_time, close_time, realized_pnl, reason, strategy
		FROM trades
		WHERE trade_id = ?`, tradeID)

	rec, err := scanTrade(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return TradeRecord{}, fmt.Errorf("trade %q not found", tradeID)
		}
		return TradeRecord{}, err
	}
	return rec, nil
}

// ListTrades returns every closed trade ordered by close time.
func (j *SQLite) ListTrades() ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, side, units, entry_price, exit_price, stop_loss, take_profit,
		       open_time, close_time, realized_pnl, reason, strategy
		FROM trades
		ORDER BY close_time ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// ListTradesClosedBetween returns trades whose close_time is within [start, end).
func (j *SQLite) ListTradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, symbol, side, units, entry_price, exit_price, stop_loss, take_profit,
		       open_time, close_time, realized_pnl, reason, strategy
		FROM trades
		WHERE close_time >= ? AND close_time < ?
		ORDER BY close_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// LatestEquity returns the most recent equity snapshot.
func (j *SQLite) LatestEquity() (EquitySnapshot, error) {
	var e EquitySnapshot
	row := j.db.QueryRow(`
		SELECT time, available, committed, equity, open_positions
		FROM equity
		ORDER BY time DESC
		LIMIT 1`)

	err := row.Scan(&e.Time, &e.Available, &e.Committed, &e.Equity, &e.OpenPositions)
	if err != nil {
		if err == sql.ErrNoRows {
			return EquitySnapshot{}, fmt.Errorf("no equity snapshots recorded")
		}
		return EquitySnapshot{}, err
	}
	return e, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTrade(s scanner) (TradeRecord, error) {
	var rec TradeRecord
	err := s.Scan(
		&rec.TradeID,
		&rec.Symbol,
		&rec.Side,
		&rec.Units,
		&rec.EntryPrice,
		&rec.ExitPrice,
		&rec.StopLoss,
		&rec.TakeProfit,
		&rec.OpenTime,
		&rec.CloseTime,
		&rec.RealizedPnL,
		&rec.Reason,
		&rec.Strategy,
	)
	return rec, err
}

func collectTrades(rows *sql.Rows) ([]TradeRecord, error) {
	var out []TradeRecord
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
