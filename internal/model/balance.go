package model

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Asset holds the amounts of one currency.
type Asset struct {
	Free  decimal.Decimal `json:"free"`
	Used  decimal.Decimal `json:"used"`
	Total decimal.Decimal `json:"total"`
}

// Balance maps a currency code to its amounts.
type Balance map[string]Asset

// Get returns the asset for code, zero-valued when missing.
func (b Balance) Get(code string) Asset {
	return b[code]
}

// Credit moves amount into free (negative debits) and keeps total = free + used.
func (b Balance) Credit(code string, amount decimal.Decimal) {
	a := b[code]
	a.Free = a.Free.Add(amount)
	a.Total = a.Free.Add(a.Used)
	b[code] = a
}

// Clone returns an independent copy.
func (b Balance) Clone() Balance {
	out := make(Balance, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Codes returns the currency codes with a non-zero total, sorted.
func (b Balance) Codes() []string {
	codes := make([]string, 0, len(b))
	for k, v := range b {
		if !v.Total.IsZero() || !v.Free.IsZero() {
			codes = append(codes, k)
		}
	}
	sort.Strings(codes)
	return codes
}

// Status is the exchange health as reported by FetchStatus.
type Status struct {
	Status  string `json:"status"` // "ok" or "maintenance"
	Updated int64  `json:"updated"`
	Message string `json:"message,omitempty"`
}
