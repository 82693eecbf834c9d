package portfolio

import (
	"sync"

	"github.com/shopspring/decimal"

	"coindog/internal/model"
)

// PnLTracker tracks realized and unrealized P&L in quote units.
type PnLTracker struct {
	mu sync.RWMutex

	// Realized P&L from closed positions
	realizedPnL decimal.Decimal

	// Per-symbol cost basis
	costBasis map[string]costEntry
	trades    int
}

type costEntry struct {
	Amount   decimal.Decimal
	AvgPrice decimal.Decimal // per unit of base
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{costBasis: make(map[string]costEntry)}
}

// RecordOrder updates the cost basis and returns the realized P&L of a sell.
func (p *PnLTracker) RecordOrder(o model.Order) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.trades++
	entry := p.costBasis[o.Symbol]
	realized := decimal.Zero

	switch o.Signal {
	case model.SignalBuy:
		// Weighted average price
		totalCost := entry.AvgPrice.Mul(entry.Amount).Add(o.Price)
		entry.Amount = entry.Amount.Add(o.Amount)
		if entry.Amount.IsPositive() {
			entry.AvgPrice = totalCost.Div(entry.Amount)
		}
	case model.SignalSell:
		sold := decimal.Min(o.Amount, entry.Amount)
		if sold.IsPositive() {
			unit := o.Price.Div(o.Amount)
			realized = unit.Sub(entry.AvgPrice).Mul(sold)
		}
		entry.Amount = entry.Amount.Sub(sold)
		if !entry.Amount.IsPositive() {
			entry = costEntry{}
		}
		p.realizedPnL = p.realizedPnL.Add(realized)
	}

	p.costBasis[o.Symbol] = entry
	return realized
}

// RealizedPnL returns the total realized P&L.
func (p *PnLTracker) RealizedPnL() decimal.Decimal {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realizedPnL
}

// PnLSummary is a point-in-time P&L view.
type PnLSummary struct {
	RealizedPnL   decimal.Decimal `json:"realizedPnl"`
	UnrealizedPnL decimal.Decimal `json:"unrealizedPnl"`
	TotalPnL      decimal.Decimal `json:"totalPnl"`
	TotalTrades   int             `json:"totalTrades"`
	OpenPositions int             `json:"openPositions"`
}

// Summary values open positions at currentPrices (symbol -> last close).
func (p *PnLTracker) Summary(currentPrices map[string]float64) PnLSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	unrealized := decimal.Zero
	open := 0
	for symbol, entry := range p.costBasis {
		if !entry.Amount.IsPositive() {
			continue
		}
		open++
		if price, ok := currentPrices[symbol]; ok {
			unrealized = unrealized.Add(decimal.NewFromFloat(price).Sub(entry.AvgPrice).Mul(entry.Amount))
		}
	}

	return PnLSummary{
		RealizedPnL:   p.realizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      p.realizedPnL.Add(unrealized),
		TotalTrades:   p.trades,
		OpenPositions: open,
	}
}
