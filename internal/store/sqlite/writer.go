package sqlite

import (
	"database/sql"
	"fmt"
	"sort"

	"coindog/internal/model"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to SQLite database file, e.g. "data/coindog.db"
}

// Store persists tracked markets and candle snapshots in SQLite.
// It implements model.MarketStore and model.CandleStore.
type Store struct {
	db  *sql.DB
	log *zap.Logger
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database with WAL mode and creates the schema.
func New(cfg Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info("sqlite opened", zap.String("path", cfg.DBPath))
	return &Store{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS markets (
			symbol          TEXT    PRIMARY KEY,
			id              TEXT    NOT NULL,
			base            TEXT    NOT NULL,
			quote           TEXT    NOT NULL,
			active          INTEGER NOT NULL,
			amount_prec     INTEGER NOT NULL,
			price_prec      INTEGER NOT NULL,
			amount_min      REAL    NOT NULL,
			amount_max      REAL    NOT NULL,
			price_min       REAL    NOT NULL,
			price_max       REAL    NOT NULL,
			cost_min        REAL    NOT NULL,
			cost_max        REAL    NOT NULL,
			position        INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS candles (
			symbol     TEXT    NOT NULL,
			ts         INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL,
			atr        REAL,
			upper_band REAL,
			lower_band REAL,
			uptrend    INTEGER,
			signal     TEXT    NOT NULL DEFAULT '',
			PRIMARY KEY (symbol, ts)
		);
	`)
	return err
}

// SaveMarkets replaces the tracked market list in a single transaction.
func (s *Store) SaveMarkets(markets []model.MarketMeta) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM markets`); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite clear markets: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO markets (symbol, id, base, quote, active, amount_prec, price_prec,
			amount_min, amount_max, price_min, price_max, cost_min, cost_max, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i, m := range markets {
		_, err := stmt.Exec(m.Symbol, m.ID, m.Base, m.Quote, m.Active,
			m.Precision.Amount, m.Precision.Price,
			m.Limits.Amount.Min, m.Limits.Amount.Max,
			m.Limits.Price.Min, m.Limits.Price.Max,
			m.Limits.Cost.Min, m.Limits.Cost.Max, i)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert market %s: %w", m.Symbol, err)
		}
	}
	return tx.Commit()
}

// SaveCandles replaces the candle snapshot in a single transaction.
func (s *Store) SaveCandles(snapshot map[string][]model.Candle) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM candles`); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite clear candles: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (symbol, ts, open, high, low, close, volume,
			atr, upper_band, lower_band, uptrend, signal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	symbols := make([]string, 0, len(snapshot))
	for sym := range snapshot {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	n := 0
	for _, sym := range symbols {
		for _, c := range snapshot[sym] {
			_, err := stmt.Exec(sym, c.Timestamp, c.Open, c.High, c.Low, c.Close, c.Volume,
				nullFloat(c.ATR), nullFloat(c.UpperBand), nullFloat(c.LowerBand),
				nullBool(c.Uptrend), string(c.Signal))
			if err != nil {
				tx.Rollback()
				return fmt.Errorf("sqlite insert candle %s@%d: %w", sym, c.Timestamp, err)
			}
			n++
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("sqlite candles saved", zap.Int("symbols", len(symbols)), zap.Int("candles", n))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullBool(v *bool) sql.NullBool {
	if v == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *v, Valid: true}
}
