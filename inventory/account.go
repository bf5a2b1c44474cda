package inventory

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Account keeps per-asset balances. The paper-trade connector mutates it
// on fills; the quoting core only reads a fresh balance each tick.
type Account struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
}

// NewAccount seeds an account with initial balances.
func NewAccount(initial map[string]decimal.Decimal) *Account {
	balances := make(map[string]decimal.Decimal, len(initial))
	for asset, amount := range initial {
		balances[asset] = amount
	}
	return &Account{balances: balances}
}

// Balance returns the current balance of asset, zero when unknown.
func (a *Account) Balance(asset string) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balances[asset]
}

// Add credits (or debits, with a negative delta) an asset.
func (a *Account) Add(asset string, delta decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balances[asset] = a.balances[asset].Add(delta)
}
