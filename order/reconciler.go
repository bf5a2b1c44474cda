package order

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Executor is the exchange-side collaborator. Failures it returns are
// propagated as-is; the reconciler neither retries nor rolls back.
type Executor interface {
	OpenOrders(symbol string) ([]OpenOrder, error)
	Cancel(symbol, orderID string) error
	SubmitBuy(symbol string, amount, price decimal.Decimal) error
	SubmitSell(symbol string, amount, price decimal.Decimal) error
}

// BudgetChecker adjusts intents for available funding. With allOrNone
// false each leg is shrunk or dropped independently.
type BudgetChecker interface {
	AdjustForFunding(intents []Intent, allOrNone bool) ([]Intent, error)
}

// Report summarizes one reconciliation cycle for metrics.
type Report struct {
	Canceled  int
	Submitted []Intent
}

// Reconciler makes the live order set match the latest quote pair.
type Reconciler struct {
	symbol string
	amount decimal.Decimal
	exec   Executor
	budget BudgetChecker
}

// NewReconciler wires the reconciler for one instrument with a fixed
// per-leg order amount.
func NewReconciler(symbol string, amount decimal.Decimal, exec Executor, budget BudgetChecker) (*Reconciler, error) {
	if symbol == "" {
		return nil, errors.New("reconciler requires a symbol")
	}
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("order amount must be > 0, got %s", amount)
	}
	if exec == nil || budget == nil {
		return nil, errors.New("reconciler requires executor and budget checker")
	}
	return &Reconciler{symbol: symbol, amount: amount, exec: exec, budget: budget}, nil
}

// Reconcile cancels every open order for the instrument, then submits
// the buy/sell legs that survive the funding check. A leg dropped by
// funding is expected under low balance, not an error. Submission of one
// leg proceeds even when the other leg's submission fails; the failures
// are joined and propagated.
func (r *Reconciler) Reconcile(buyPrice, sellPrice decimal.Decimal) (Report, error) {
	var rep Report

	// Unconditional full cancel, no diffing against the prior set.
	open, err := r.exec.OpenOrders(r.symbol)
	if err != nil {
		return rep, fmt.Errorf("list open orders: %w", err)
	}
	for _, o := range open {
		if err := r.exec.Cancel(r.symbol, o.ID); err != nil {
			return rep, fmt.Errorf("cancel order %s: %w", o.ID, err)
		}
		rep.Canceled++
	}

	intents := []Intent{
		{Side: Buy, Amount: r.amount, Price: buyPrice},
		{Side: Sell, Amount: r.amount, Price: sellPrice},
	}
	adjusted, err := r.budget.AdjustForFunding(intents, false)
	if err != nil {
		return rep, fmt.Errorf("adjust for funding: %w", err)
	}

	var submitErrs []error
	for _, it := range adjusted {
		if it.Amount.Sign() <= 0 {
			continue
		}
		switch it.Side {
		case Buy:
			err = r.exec.SubmitBuy(r.symbol, it.Amount, it.Price)
		case Sell:
			err = r.exec.SubmitSell(r.symbol, it.Amount, it.Price)
		default:
			err = fmt.Errorf("unknown side %q", it.Side)
		}
		if err != nil {
			submitErrs = append(submitErrs, fmt.Errorf("submit %s: %w", it.Side, err))
			continue
		}
		rep.Submitted = append(rep.Submitted, it)
	}
	return rep, errors.Join(submitErrs...)
}
