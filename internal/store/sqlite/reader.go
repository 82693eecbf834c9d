package sqlite

import (
	"database/sql"
	"fmt"

	"coindog/internal/model"
)

// LoadMarkets reads the tracked market list in insertion order.
func (s *Store) LoadMarkets() ([]model.MarketMeta, error) {
	rows, err := s.db.Query(`
		SELECT symbol, id, base, quote, active, amount_prec, price_prec,
			amount_min, amount_max, price_min, price_max, cost_min, cost_max
		FROM markets
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query markets: %w", err)
	}
	defer rows.Close()

	var markets []model.MarketMeta
	for rows.Next() {
		var m model.MarketMeta
		if err := rows.Scan(&m.Symbol, &m.ID, &m.Base, &m.Quote, &m.Active,
			&m.Precision.Amount, &m.Precision.Price,
			&m.Limits.Amount.Min, &m.Limits.Amount.Max,
			&m.Limits.Price.Min, &m.Limits.Price.Max,
			&m.Limits.Cost.Min, &m.Limits.Cost.Max); err != nil {
			return nil, fmt.Errorf("sqlite scan markets: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// LoadCandles reads the candle snapshot, each symbol ordered by timestamp
// ascending. Returns an empty map when nothing was saved.
func (s *Store) LoadCandles() (map[string][]model.Candle, error) {
	rows, err := s.db.Query(`
		SELECT symbol, ts, open, high, low, close, volume,
			atr, upper_band, lower_band, uptrend, signal
		FROM candles
		ORDER BY symbol ASC, ts ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.Candle)
	for rows.Next() {
		var (
			sym               string
			c                 model.Candle
			atr, upper, lower sql.NullFloat64
			uptrend           sql.NullBool
			signal            string
		)
		if err := rows.Scan(&sym, &c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume,
			&atr, &upper, &lower, &uptrend, &signal); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		if atr.Valid {
			c.ATR = model.Float(atr.Float64)
		}
		if upper.Valid {
			c.UpperBand = model.Float(upper.Float64)
		}
		if lower.Valid {
			c.LowerBand = model.Float(lower.Float64)
		}
		if uptrend.Valid {
			c.Uptrend = model.Bool(uptrend.Bool)
		}
		c.Signal = model.Signal(signal)
		out[sym] = append(out[sym], c)
	}
	return out, rows.Err()
}

// LastTimestamp returns the newest stored candle timestamp for symbol, 0 when none.
func (s *Store) LastTimestamp(symbol string) (int64, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(ts) FROM candles WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}
