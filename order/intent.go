// Package order reconciles the live order set against the latest quote
// pair: full cancel, funding adjustment, independent per-leg submission.
package order

import "github.com/shopspring/decimal"

// Side of an order intent.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Intent is a desired limit order before the funding check. The budget
// step may shrink Amount or drop the leg entirely (zero amount).
type Intent struct {
	Side   Side
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// OpenOrder is the minimal view of a live order needed for cancellation.
type OpenOrder struct {
	ID   string
	Side Side
}

// FillEvent reports an executed order. Consumed by the fill hook for
// logging only; no state is mutated on fills.
type FillEvent struct {
	Symbol string
	Side   Side
	Amount decimal.Decimal
	Price  decimal.Decimal
}
