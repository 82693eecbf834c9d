// Package jsonfile keeps the tracked market list and the candle snapshot in
// two JSON files, the format the watch command reads at startup.
package jsonfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"coindog/internal/model"
)

// Store implements model.MarketStore and model.CandleStore on JSON files.
type Store struct {
	marketsPath string
	candlesPath string
}

// New returns a Store. An empty candlesPath disables the candle snapshot:
// loads return an empty map and saves are dropped.
func New(marketsPath, candlesPath string) *Store {
	return &Store{marketsPath: marketsPath, candlesPath: candlesPath}
}

// MarketsPath returns the market list file path.
func (s *Store) MarketsPath() string { return s.marketsPath }

// Ensure creates an empty market list when the file does not exist yet.
func (s *Store) Ensure() error {
	if _, err := os.Stat(s.marketsPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return s.SaveMarkets([]model.MarketMeta{})
}

// LoadMarkets reads the market list. A missing or malformed file is an error.
func (s *Store) LoadMarkets() ([]model.MarketMeta, error) {
	data, err := os.ReadFile(s.marketsPath)
	if err != nil {
		return nil, fmt.Errorf("read market list: %w", err)
	}
	var markets []model.MarketMeta
	if err := sonic.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("parse market list %s: %w", s.marketsPath, err)
	}
	for i, m := range markets {
		if m.Symbol == "" {
			return nil, fmt.Errorf("parse market list %s: entry %d has no symbol", s.marketsPath, i)
		}
	}
	return markets, nil
}

// SaveMarkets rewrites the market list.
func (s *Store) SaveMarkets(markets []model.MarketMeta) error {
	if markets == nil {
		markets = []model.MarketMeta{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(markets, "", "    ")
	if err != nil {
		return fmt.Errorf("encode market list: %w", err)
	}
	return writeFile(s.marketsPath, data)
}

// LoadCandles reads the candle snapshot. A missing file yields an empty map,
// a malformed one is an error.
func (s *Store) LoadCandles() (map[string][]model.Candle, error) {
	out := make(map[string][]model.Candle)
	if s.candlesPath == "" {
		return out, nil
	}
	data, err := os.ReadFile(s.candlesPath)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read candle snapshot: %w", err)
	}
	if err := sonic.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse candle snapshot %s: %w", s.candlesPath, err)
	}
	if out == nil {
		out = make(map[string][]model.Candle)
	}
	return out, nil
}

// SaveCandles rewrites the candle snapshot.
func (s *Store) SaveCandles(snapshot map[string][]model.Candle) error {
	if s.candlesPath == "" {
		return nil
	}
	data, err := sonic.ConfigStd.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode candle snapshot: %w", err)
	}
	return writeFile(s.candlesPath, data)
}

// writeFile replaces path atomically through a temp file in the same directory.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
