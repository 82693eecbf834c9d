// Package portfolio keeps the append-only log of simulated orders and the
// P&L derived from it.
//
// The Ledger answers "what was the last BUY/SELL for this symbol", which the
// simulator needs to compute an order's delta, and exposes read-only
// snapshots for the status API.
package portfolio

import (
	"sync"

	"coindog/internal/model"
)

// Ledger is an append-only order log. Safe for concurrent use.
type Ledger struct {
	mu     sync.RWMutex
	orders []model.Order
	last   map[string]map[model.Signal]int // symbol -> signal -> index in orders
	pnl    *PnLTracker
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		orders: make([]model.Order, 0, 256),
		last:   make(map[string]map[model.Signal]int),
		pnl:    NewPnLTracker(),
	}
}

// Record appends an order and feeds it to the P&L tracker.
func (l *Ledger) Record(o model.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.orders = append(l.orders, o)
	bySignal, ok := l.last[o.Symbol]
	if !ok {
		bySignal = make(map[model.Signal]int, 2)
		l.last[o.Symbol] = bySignal
	}
	bySignal[o.Signal] = len(l.orders) - 1
	l.pnl.RecordOrder(o)
}

// Last returns the most recent order with the given signal for symbol.
func (l *Ledger) Last(symbol string, signal model.Signal) (model.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.last[symbol][signal]
	if !ok {
		return model.Order{}, false
	}
	return l.orders[idx], true
}

// Orders returns a snapshot of all orders, oldest first.
func (l *Ledger) Orders() []model.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make([]model.Order, len(l.orders))
	copy(cp, l.orders)
	return cp
}

// Len returns the number of recorded orders.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}

// PnL returns the tracker fed by Record.
func (l *Ledger) PnL() *PnLTracker {
	return l.pnl
}
