package order

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVenue struct {
	open      []OpenOrder
	openErr   error
	cancelErr error
	buyErr    error
	sellErr   error
	adjust    func([]Intent, bool) ([]Intent, error)

	canceled []string
	buys     []Intent
	sells    []Intent
}

func (f *fakeVenue) OpenOrders(symbol string) ([]OpenOrder, error) {
	return f.open, f.openErr
}

func (f *fakeVenue) Cancel(symbol, orderID string) error {
	if f.cancelErr != nil {
		return f.cancelErr
	}
	f.canceled = append(f.canceled, orderID)
	return nil
}

func (f *fakeVenue) SubmitBuy(symbol string, amount, price decimal.Decimal) error {
	if f.buyErr != nil {
		return f.buyErr
	}
	f.buys = append(f.buys, Intent{Side: Buy, Amount: amount, Price: price})
	return nil
}

func (f *fakeVenue) SubmitSell(symbol string, amount, price decimal.Decimal) error {
	if f.sellErr != nil {
		return f.sellErr
	}
	f.sells = append(f.sells, Intent{Side: Sell, Amount: amount, Price: price})
	return nil
}

func (f *fakeVenue) AdjustForFunding(intents []Intent, allOrNone bool) ([]Intent, error) {
	if f.adjust != nil {
		return f.adjust(intents, allOrNone)
	}
	return intents, nil
}

func newTestReconciler(t *testing.T, venue *fakeVenue) *Reconciler {
	t.Helper()
	r, err := NewReconciler("ETHUSDT", decimal.RequireFromString("0.01"), venue, venue)
	require.NoError(t, err)
	return r
}

func TestNewReconcilerValidation(t *testing.T) {
	venue := &fakeVenue{}
	amount := decimal.RequireFromString("0.01")

	_, err := NewReconciler("", amount, venue, venue)
	assert.Error(t, err)

	_, err = NewReconciler("ETHUSDT", decimal.Zero, venue, venue)
	assert.Error(t, err)

	_, err = NewReconciler("ETHUSDT", amount, nil, venue)
	assert.Error(t, err)
}

func TestReconcileFullCycle(t *testing.T) {
	venue := &fakeVenue{open: []OpenOrder{{ID: "a", Side: Buy}, {ID: "b", Side: Sell}}}
	r := newTestReconciler(t, venue)

	rep, err := r.Reconcile(decimal.RequireFromString("99.9"), decimal.RequireFromString("100.1"))
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Canceled)
	assert.Len(t, venue.canceled, 2)
	require.Len(t, venue.buys, 1)
	require.Len(t, venue.sells, 1)
	assert.Equal(t, "99.9", venue.buys[0].Price.String())
	assert.Equal(t, "100.1", venue.sells[0].Price.String())
	assert.Len(t, rep.Submitted, 2)
}

func TestReconcileCancelsBeforeFundingDrop(t *testing.T) {
	// Funding drops the buy leg entirely; cancellation is unconditional
	// and the surviving sell leg still goes out.
	venue := &fakeVenue{
		open: []OpenOrder{{ID: "a", Side: Buy}},
		adjust: func(intents []Intent, allOrNone bool) ([]Intent, error) {
			assert.False(t, allOrNone)
			out := make([]Intent, 0, 1)
			for _, it := range intents {
				if it.Side == Sell {
					out = append(out, it)
				}
			}
			return out, nil
		},
	}
	r := newTestReconciler(t, venue)

	rep, err := r.Reconcile(decimal.RequireFromString("99.9"), decimal.RequireFromString("100.1"))
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Canceled)
	assert.Empty(t, venue.buys)
	require.Len(t, venue.sells, 1)
	require.Len(t, rep.Submitted, 1)
	assert.Equal(t, Sell, rep.Submitted[0].Side)
}

func TestReconcileCancelErrorStopsCycle(t *testing.T) {
	venue := &fakeVenue{
		open:      []OpenOrder{{ID: "a", Side: Buy}},
		cancelErr: errors.New("venue down"),
	}
	r := newTestReconciler(t, venue)

	_, err := r.Reconcile(decimal.RequireFromString("99.9"), decimal.RequireFromString("100.1"))
	require.Error(t, err)
	assert.Empty(t, venue.buys)
	assert.Empty(t, venue.sells)
}

func TestReconcileLegsFailIndependently(t *testing.T) {
	venue := &fakeVenue{buyErr: errors.New("rejected")}
	r := newTestReconciler(t, venue)

	rep, err := r.Reconcile(decimal.RequireFromString("99.9"), decimal.RequireFromString("100.1"))
	require.Error(t, err)

	// The buy failure does not block the sell leg.
	require.Len(t, venue.sells, 1)
	require.Len(t, rep.Submitted, 1)
	assert.Equal(t, Sell, rep.Submitted[0].Side)
	assert.Contains(t, err.Error(), "submit BUY")
}

func TestReconcileSkipsZeroAmount(t *testing.T) {
	venue := &fakeVenue{
		adjust: func(intents []Intent, allOrNone bool) ([]Intent, error) {
			intents[0].Amount = decimal.Zero
			return intents, nil
		},
	}
	r := newTestReconciler(t, venue)

	rep, err := r.Reconcile(decimal.RequireFromString("99.9"), decimal.RequireFromString("100.1"))
	require.NoError(t, err)
	assert.Empty(t, venue.buys)
	assert.Len(t, rep.Submitted, 1)
}
