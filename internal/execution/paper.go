// Package execution simulates order execution against a virtual balance.
//
// Nothing here talks to a live exchange: the Simulator mutates an in-memory
// Balance, appends to the portfolio Ledger and optionally mirrors every
// fill to an OrderRecorder such as the SQLite Journal.
package execution

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"coindog/internal/model"
	"coindog/internal/portfolio"
)

// Rejection reasons.
const (
	ReasonNoFunds        = "no quote funds"
	ReasonNothingToSell  = "no base holdings"
	ReasonAmountBelowMin = "amount below minimum"
	ReasonPriceBelowMin  = "price below minimum"
	ReasonInsufficient   = "insufficient quote balance"
	ReasonUnsupported    = "unsupported signal"
	ReasonInvalidPrice   = "invalid close price"
)

// Simulator executes BUY/SELL signals against a virtual balance.
// Safe for concurrent use; in practice the watch loop is the only writer.
type Simulator struct {
	mu       sync.RWMutex
	balance  model.Balance
	stake    decimal.Decimal // quote amount spent per BUY
	ledger   *portfolio.Ledger
	recorder model.OrderRecorder
	orderSeq int64

	log *zap.Logger
	now func() time.Time
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithRecorder mirrors executed orders to r.
func WithRecorder(r model.OrderRecorder) Option {
	return func(s *Simulator) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

// WithClock overrides the wall clock used for order timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// NewSimulator creates a simulator owning a copy of balance.
func NewSimulator(balance model.Balance, stake decimal.Decimal, ledger *portfolio.Ledger, opts ...Option) *Simulator {
	if balance == nil {
		balance = model.Balance{}
	}
	if ledger == nil {
		ledger = portfolio.NewLedger()
	}
	s := &Simulator{
		balance: balance.Clone(),
		stake:   stake,
		ledger:  ledger,
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Balance returns a snapshot of the virtual balance.
func (s *Simulator) Balance() model.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance.Clone()
}

// Ledger returns the order log.
func (s *Simulator) Ledger() *portfolio.Ledger {
	return s.ledger
}

// Stake returns the quote amount spent per BUY.
func (s *Simulator) Stake() decimal.Decimal {
	return s.stake
}

// Execute acts on signal for market m at the given close. On success the
// order is returned and the balance updated; otherwise the Rejection says
// why nothing happened.
func (s *Simulator) Execute(m model.MarketMeta, signal model.Signal, lastClose float64, ts int64) (model.Order, *model.Rejection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reject := func(reason string, amount, price decimal.Decimal) (model.Order, *model.Rejection) {
		return model.Order{}, &model.Rejection{Symbol: m.Symbol, Signal: signal, Reason: reason, Amount: amount, Price: price}
	}

	if lastClose <= 0 {
		return reject(ReasonInvalidPrice, decimal.Zero, decimal.Zero)
	}
	closePrice := decimal.NewFromFloat(lastClose)
	minAmount := decimal.NewFromFloat(m.Limits.Amount.Min)
	minPrice := decimal.NewFromFloat(m.Limits.Price.Min)

	var amount, price decimal.Decimal
	switch signal {
	case model.SignalBuy:
		quoteFree := s.balance.Get(m.Quote).Free
		if !quoteFree.IsPositive() {
			return reject(ReasonNoFunds, decimal.Zero, decimal.Zero)
		}
		amount = s.stake.Div(closePrice).Round(m.Precision.Amount)
		price = amount.Mul(closePrice).Round(m.Precision.Price)
		if quoteFree.LessThan(price) {
			return reject(ReasonInsufficient, amount, price)
		}
	case model.SignalSell:
		baseFree := s.balance.Get(m.Base).Free
		if !baseFree.IsPositive() {
			return reject(ReasonNothingToSell, decimal.Zero, decimal.Zero)
		}
		// Truncate so the amount never exceeds holdings.
		amount = baseFree.Truncate(m.Precision.Amount)
		price = amount.Mul(closePrice).Round(m.Precision.Price)
	default:
		return reject(ReasonUnsupported, decimal.Zero, decimal.Zero)
	}

	if !amount.IsPositive() || amount.LessThan(minAmount) {
		return reject(ReasonAmountBelowMin, amount, price)
	}
	if price.LessThan(minPrice) {
		return reject(ReasonPriceBelowMin, amount, price)
	}

	if signal == model.SignalBuy {
		s.balance.Credit(m.Base, amount)
		s.balance.Credit(m.Quote, price.Neg())
	} else {
		s.balance.Credit(m.Base, amount.Neg())
		s.balance.Credit(m.Quote, price)
	}

	s.orderSeq++
	o := model.Order{
		ID:         fmt.Sprintf("SIM-%d", s.orderSeq),
		Symbol:     m.Symbol,
		Signal:     signal,
		Timestamp:  ts,
		ClosePrice: closePrice,
		Amount:     amount,
		Price:      price,
		Delta:      s.delta(m.Symbol, signal, price),
		CreatedAt:  s.now(),
	}
	s.ledger.Record(o)

	s.log.Info("simulated order",
		zap.String("id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("signal", string(o.Signal)),
		zap.String("amount", o.Amount.String()),
		zap.String("price", o.Price.String()),
	)

	if s.recorder != nil {
		if err := s.recorder.RecordOrder(o); err != nil {
			s.log.Warn("order journal write failed", zap.String("id", o.ID), zap.Error(err))
		}
	}
	return o, nil
}

// delta compares price with the last order of the opposite signal:
// lastSell - buy for a BUY, sell - lastBuy for a SELL.
func (s *Simulator) delta(symbol string, signal model.Signal, price decimal.Decimal) decimal.NullDecimal {
	if signal == model.SignalBuy {
		if prev, ok := s.ledger.Last(symbol, model.SignalSell); ok {
			return decimal.NewNullDecimal(prev.Price.Sub(price))
		}
		return decimal.NullDecimal{}
	}
	if prev, ok := s.ledger.Last(symbol, model.SignalBuy); ok {
		return decimal.NewNullDecimal(price.Sub(prev.Price))
	}
	return decimal.NullDecimal{}
}
