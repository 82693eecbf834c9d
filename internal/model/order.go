package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is a simulated fill recorded by the order simulator.
type Order struct {
	ID         string              `json:"id"`
	Symbol     string              `json:"symbol"`
	Signal     Signal              `json:"signal"` // BUY or SELL
	Timestamp  int64               `json:"timestamp"`
	ClosePrice decimal.Decimal     `json:"closePrice"`
	Amount     decimal.Decimal     `json:"amount"`
	Price      decimal.Decimal     `json:"price"` // amount * close, quote units
	Delta      decimal.NullDecimal `json:"delta"` // vs last opposite order, if any
	CreatedAt  time.Time           `json:"createdAt"`
}

// Rejection describes an order the simulator declined to execute.
// Nothing is recorded and the balance is unchanged.
type Rejection struct {
	Symbol string          `json:"symbol"`
	Signal Signal          `json:"signal"`
	Reason string          `json:"reason"`
	Amount decimal.Decimal `json:"amount"`
	Price  decimal.Decimal `json:"price"`
}

func (r *Rejection) String() string {
	return string(r.Signal) + " " + r.Symbol + " rejected: " + r.Reason +
		" (amount=" + r.Amount.String() + " price=" + r.Price.String() + ")"
}
