package portfolio

import (
	"testing"

	"github.com/shopspring/decimal"

	"coindog/internal/model"
)

func order(symbol string, sig model.Signal, amount, price string) model.Order {
	return model.Order{
		Symbol: symbol,
		Signal: sig,
		Amount: decimal.RequireFromString(amount),
		Price:  decimal.RequireFromString(price),
	}
}

func TestLedger_LastBySignal(t *testing.T) {
	l := NewLedger()
	l.Record(order("BTC/USDT", model.SignalBuy, "1", "100"))
	l.Record(order("ETH/USDT", model.SignalBuy, "1", "10"))
	l.Record(order("BTC/USDT", model.SignalSell, "1", "120"))
	l.Record(order("BTC/USDT", model.SignalBuy, "1", "90"))

	buy, ok := l.Last("BTC/USDT", model.SignalBuy)
	if !ok || !buy.Price.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("expected last BTC buy at 90, got %v ok=%v", buy.Price, ok)
	}
	sell, ok := l.Last("BTC/USDT", model.SignalSell)
	if !ok || !sell.Price.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("expected last BTC sell at 120, got %v ok=%v", sell.Price, ok)
	}
	if _, ok := l.Last("ETH/USDT", model.SignalSell); ok {
		t.Fatal("ETH has no sell")
	}
	if l.Len() != 4 || len(l.Orders()) != 4 {
		t.Fatalf("expected 4 orders, got %d", l.Len())
	}
}

func TestPnL_RealizedAndUnrealized(t *testing.T) {
	l := NewLedger()
	l.Record(order("BTC/USDT", model.SignalBuy, "2", "50"))  // avg 25
	l.Record(order("BTC/USDT", model.SignalSell, "2", "60")) // +10
	l.Record(order("ETH/USDT", model.SignalBuy, "4", "8"))   // avg 2

	sum := l.PnL().Summary(map[string]float64{"ETH/USDT": 3})
	if !sum.RealizedPnL.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected realized 10, got %v", sum.RealizedPnL)
	}
	if !sum.UnrealizedPnL.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected unrealized 4, got %v", sum.UnrealizedPnL)
	}
	if sum.OpenPositions != 1 || sum.TotalTrades != 3 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if !sum.TotalPnL.Equal(decimal.NewFromInt(14)) {
		t.Fatalf("expected total 14, got %v", sum.TotalPnL)
	}
}
