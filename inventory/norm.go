// Package inventory tracks asset balances and normalizes position size
// for the inventory-risk penalty.
package inventory

import "github.com/shopspring/decimal"

var one = decimal.NewFromInt(1)

// Norm divides the base-asset balance by the configured cap and clamps
// the result to [-1, 1]. The cap must be positive; validation happens at
// config load.
func Norm(balance, maxInventory decimal.Decimal) decimal.Decimal {
	norm := balance.Div(maxInventory)
	if norm.GreaterThan(one) {
		return one
	}
	if norm.LessThan(one.Neg()) {
		return one.Neg()
	}
	return norm
}
