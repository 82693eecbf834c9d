package execution

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"coindog/internal/model"
)

// Journal persists simulated orders to SQLite for analysis and audit.
// It implements model.OrderRecorder.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id     TEXT NOT NULL,
		symbol       TEXT NOT NULL,
		signal       TEXT NOT NULL,
		candle_ts    INTEGER NOT NULL,
		close_price  TEXT NOT NULL,
		amount       TEXT NOT NULL,
		price        TEXT NOT NULL,
		delta        TEXT,
		created_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol, signal);
	CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// RecordOrder persists an order to the journal.
func (j *Journal) RecordOrder(o model.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var delta sql.NullString
	if o.Delta.Valid {
		delta = sql.NullString{String: o.Delta.Decimal.String(), Valid: true}
	}
	_, err := j.db.Exec(
		`INSERT INTO orders (order_id, symbol, signal, candle_ts, close_price, amount, price, delta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID,
		o.Symbol,
		string(o.Signal),
		o.Timestamp,
		o.ClosePrice.String(),
		o.Amount.String(),
		o.Price.String(),
		delta,
		o.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// GetOrders returns the last N orders, newest first.
func (j *Journal) GetOrders(limit int) ([]model.Order, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT order_id, symbol, signal, candle_ts, close_price, amount, price, delta, created_at
		 FROM orders ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var (
			o                        model.Order
			signal, closePx, amt, px string
			delta                    sql.NullString
			createdAt                string
		)
		if err := rows.Scan(&o.ID, &o.Symbol, &signal, &o.Timestamp, &closePx, &amt, &px, &delta, &createdAt); err != nil {
			continue
		}
		o.Signal = model.Signal(signal)
		o.ClosePrice, _ = decimal.NewFromString(closePx)
		o.Amount, _ = decimal.NewFromString(amt)
		o.Price, _ = decimal.NewFromString(px)
		if delta.Valid {
			if d, err := decimal.NewFromString(delta.String); err == nil {
				o.Delta = decimal.NewNullDecimal(d)
			}
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}
