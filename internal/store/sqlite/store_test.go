package sqlite

import (
	"path/filepath"
	"testing"

	"coindog/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "coindog.db")}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMarketsRoundTrip(t *testing.T) {
	s := openTestStore(t)

	markets, err := s.LoadMarkets()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if len(markets) != 0 {
		t.Fatalf("expected no markets, got %d", len(markets))
	}

	want := []model.MarketMeta{
		{Symbol: "SOL/USDT", ID: "SOLUSDT", Base: "SOL", Quote: "USDT", Active: true,
			Precision: model.Precision{Amount: 2, Price: 2},
			Limits:    model.Limits{Amount: model.MinMax{Min: 0.01}, Cost: model.MinMax{Min: 5}}},
		{Symbol: "BTC/USDT", ID: "BTCUSDT", Base: "BTC", Quote: "USDT", Active: true,
			Precision: model.Precision{Amount: 5, Price: 2},
			Limits:    model.Limits{Amount: model.MinMax{Min: 0.00001, Max: 9000}}},
	}
	if err := s.SaveMarkets(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.LoadMarkets()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(got))
	}
	// Insertion order, not alphabetical.
	if got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	if err := s.SaveMarkets(want[1:]); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ = s.LoadMarkets()
	if len(got) != 1 || got[0].Symbol != "BTC/USDT" {
		t.Fatalf("expected list to be replaced, got %+v", got)
	}
}

func TestCandlesRoundTrip(t *testing.T) {
	s := openTestStore(t)

	empty, err := s.LoadCandles()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil map, got %v", empty)
	}

	analysed := model.Candle{
		Timestamp: 120000, Open: 2, High: 3, Low: 1, Close: 2.5, Volume: 10.25,
		ATR: model.Float(1.5), UpperBand: model.Float(6.5), LowerBand: model.Float(-2.5),
		Uptrend: model.Bool(true), Signal: model.SignalBuy,
	}
	snap := map[string][]model.Candle{
		"BTC/USDT": {
			{Timestamp: 60000, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 3},
			analysed,
		},
		"ETH/USDT": {{Timestamp: 60000, Open: 1, High: 1, Low: 1, Close: 1}},
	}
	if err := s.SaveCandles(snap); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadCandles()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got["BTC/USDT"]) != 2 || len(got["ETH/USDT"]) != 1 {
		t.Fatalf("unexpected snapshot sizes: %d, %d", len(got["BTC/USDT"]), len(got["ETH/USDT"]))
	}
	first := got["BTC/USDT"][0]
	if first.ATR != nil || first.Uptrend != nil || first.Signal != model.SignalNone {
		t.Fatalf("expected unanalysed candle to stay unset, got %+v", first)
	}
	c := got["BTC/USDT"][1]
	if c.ATR == nil || *c.ATR != 1.5 || !c.HasBands() || *c.LowerBand != -2.5 {
		t.Fatalf("expected analysis fields restored, got %+v", c)
	}
	if !c.IsUptrend() || c.Signal != model.SignalBuy || c.Volume != 10.25 {
		t.Fatalf("expected trend and signal restored, got %+v", c)
	}

	ts, err := s.LastTimestamp("BTC/USDT")
	if err != nil || ts != 120000 {
		t.Fatalf("expected last ts 120000, got %d (%v)", ts, err)
	}
	ts, _ = s.LastTimestamp("DOGE/USDT")
	if ts != 0 {
		t.Fatalf("expected 0 for unknown symbol, got %d", ts)
	}

	if err := s.SaveCandles(map[string][]model.Candle{}); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, _ = s.LoadCandles()
	if len(got) != 0 {
		t.Fatalf("expected snapshot replaced by empty, got %d symbols", len(got))
	}
}
