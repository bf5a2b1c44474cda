package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pmm-quoter/indicator"
	"pmm-quoter/market"
	"pmm-quoter/order"
	"pmm-quoter/strategy"
)

// fakeVenue plays the connector, executor and budget checker in one
// in-memory stub.
type fakeVenue struct {
	ready      bool
	balance    decimal.Decimal
	balanceErr error
	mid        decimal.Decimal
	bestBid    decimal.Decimal
	bestAsk    decimal.Decimal

	open     []order.OpenOrder
	canceled int
	buys     []order.Intent
	sells    []order.Intent
}

func (f *fakeVenue) IsTradingReady() bool { return f.ready }

func (f *fakeVenue) Balance(asset string) (decimal.Decimal, error) {
	return f.balance, f.balanceErr
}

func (f *fakeVenue) MidPrice(symbol string) (decimal.Decimal, error) { return f.mid, nil }

func (f *fakeVenue) BestBid(symbol string) (decimal.Decimal, error) { return f.bestBid, nil }

func (f *fakeVenue) BestAsk(symbol string) (decimal.Decimal, error) { return f.bestAsk, nil }

func (f *fakeVenue) OpenOrders(symbol string) ([]order.OpenOrder, error) {
	return f.open, nil
}

func (f *fakeVenue) Cancel(symbol, orderID string) error {
	f.canceled++
	return nil
}

func (f *fakeVenue) SubmitBuy(symbol string, amount, price decimal.Decimal) error {
	f.buys = append(f.buys, order.Intent{Side: order.Buy, Amount: amount, Price: price})
	return nil
}

func (f *fakeVenue) SubmitSell(symbol string, amount, price decimal.Decimal) error {
	f.sells = append(f.sells, order.Intent{Side: order.Sell, Amount: amount, Price: price})
	return nil
}

func (f *fakeVenue) AdjustForFunding(intents []order.Intent, allOrNone bool) ([]order.Intent, error) {
	return intents, nil
}

func newReadyVenue() *fakeVenue {
	return &fakeVenue{
		ready:   true,
		balance: decimal.Zero,
		mid:     decimal.NewFromInt(100),
		bestBid: decimal.RequireFromString("99.99"),
		bestAsk: decimal.RequireFromString("100.01"),
	}
}

// steadyWindow yields candles with close 100 and a constant 101/99
// range, so NATR is exactly 0.02 and the MACD histogram is zero.
func steadyWindow(n int) *market.Window {
	w := market.NewWindow(n)
	for i := 0; i < n; i++ {
		w.Append(market.Candle{
			Open:  decimal.NewFromInt(100),
			High:  decimal.NewFromInt(101),
			Low:   decimal.NewFromInt(99),
			Close: decimal.NewFromInt(100),
		})
	}
	return w
}

func newTestQuoter(t *testing.T, venue *fakeVenue, window *market.Window) *Quoter {
	t.Helper()

	ind, err := indicator.NewEngine(indicator.Config{
		NATRLength: 3, MACDFast: 2, MACDSlow: 3, MACDSignal: 2,
	})
	require.NoError(t, err)

	spreads, err := strategy.NewSpreadModel(strategy.SpreadConfig{
		BidNATRScalar: decimal.RequireFromString("0.012"),
		AskNATRScalar: decimal.RequireFromString("0.006"),
		MACDWeight:    decimal.RequireFromString("0.5"),
		InventoryPhi:  decimal.RequireFromString("0.01"),
		MaxInventory:  decimal.NewFromInt(1),
		MinSpread:     decimal.RequireFromString("0.00001"),
	})
	require.NoError(t, err)

	rec, err := order.NewReconciler("ETHUSDT", decimal.RequireFromString("0.01"), venue, venue)
	require.NoError(t, err)

	q, err := New(Config{
		TradingPair:     "ETH-USDT",
		Symbol:          "ETHUSDT",
		BaseAsset:       "ETH",
		RefreshInterval: 15 * time.Second,
	}, Components{
		Indicators: ind,
		Spreads:    spreads,
		Reconciler: rec,
		Connector:  venue,
		Candles:    window,
	})
	require.NoError(t, err)
	return q
}

func TestNewValidation(t *testing.T) {
	venue := newReadyVenue()
	q := newTestQuoter(t, venue, steadyWindow(6))
	require.NotNil(t, q)

	_, err := New(Config{Symbol: "ETHUSDT", BaseAsset: "ETH", RefreshInterval: time.Second}, Components{})
	assert.Error(t, err)

	_, err = New(Config{Symbol: "", BaseAsset: "ETH", RefreshInterval: time.Second}, Components{})
	assert.Error(t, err)
}

func TestTickFullCycle(t *testing.T) {
	venue := newReadyVenue()
	venue.open = []order.OpenOrder{{ID: "stale", Side: order.Buy}}
	q := newTestQuoter(t, venue, steadyWindow(6))

	require.NoError(t, q.Tick(time.Unix(1000, 0)))

	assert.Equal(t, 1, venue.canceled)
	require.Len(t, venue.buys, 1)
	require.Len(t, venue.sells, 1)

	// NATR 0.02 with scalars 0.012/0.006: spreads 0.00024 and 0.00012,
	// neither clipped by the 99.99/100.01 book.
	assert.Equal(t, "99.976", venue.buys[0].Price.String())
	assert.Equal(t, "100.012", venue.sells[0].Price.String())
	assert.True(t, venue.buys[0].Price.LessThan(venue.sells[0].Price))
}

func TestTickRespectsRefreshInterval(t *testing.T) {
	venue := newReadyVenue()
	q := newTestQuoter(t, venue, steadyWindow(6))

	base := time.Unix(1000, 0)
	require.NoError(t, q.Tick(base))
	require.Len(t, venue.buys, 1)

	// Inside the interval nothing runs.
	require.NoError(t, q.Tick(base.Add(time.Second)))
	require.NoError(t, q.Tick(base.Add(14*time.Second)))
	assert.Len(t, venue.buys, 1)

	require.NoError(t, q.Tick(base.Add(15*time.Second)))
	assert.Len(t, venue.buys, 2)
}

func TestTickTradingNotReadyRetriesImmediately(t *testing.T) {
	venue := newReadyVenue()
	venue.ready = false
	q := newTestQuoter(t, venue, steadyWindow(6))

	base := time.Unix(1000, 0)
	require.NoError(t, q.Tick(base))
	assert.Empty(t, venue.buys)

	// The skip did not advance the schedule: the next invocation quotes
	// as soon as the venue comes up.
	venue.ready = true
	require.NoError(t, q.Tick(base.Add(time.Second)))
	assert.Len(t, venue.buys, 1)
}

func TestTickIndicatorNotReadyWaitsOneInterval(t *testing.T) {
	venue := newReadyVenue()
	window := market.NewWindow(100)
	window.Append(market.Candle{
		Open: decimal.NewFromInt(100), High: decimal.NewFromInt(101),
		Low: decimal.NewFromInt(99), Close: decimal.NewFromInt(100),
	})
	q := newTestQuoter(t, venue, window)

	base := time.Unix(1000, 0)
	require.NoError(t, q.Tick(base))
	assert.Empty(t, venue.buys)

	// History filled up right after, but the skip consumed the interval.
	for i := 0; i < 10; i++ {
		window.Append(market.Candle{
			Open: decimal.NewFromInt(100), High: decimal.NewFromInt(101),
			Low: decimal.NewFromInt(99), Close: decimal.NewFromInt(100),
		})
	}
	require.NoError(t, q.Tick(base.Add(time.Second)))
	assert.Empty(t, venue.buys)

	require.NoError(t, q.Tick(base.Add(15*time.Second)))
	assert.Len(t, venue.buys, 1)
}

func TestTickBalanceErrorPropagates(t *testing.T) {
	venue := newReadyVenue()
	venue.balanceErr = errors.New("venue glitch")
	q := newTestQuoter(t, venue, steadyWindow(6))

	base := time.Unix(1000, 0)
	err := q.Tick(base)
	require.Error(t, err)
	assert.Empty(t, venue.buys)

	// The failed cycle did not consume the interval.
	venue.balanceErr = nil
	require.NoError(t, q.Tick(base.Add(time.Second)))
	assert.Len(t, venue.buys, 1)
}

func TestStatus(t *testing.T) {
	venue := newReadyVenue()
	q := newTestQuoter(t, venue, steadyWindow(6))

	venue.ready = false
	assert.Equal(t, "Market connectors are not ready.", q.Status())

	venue.ready = true
	require.NoError(t, q.Tick(time.Unix(1000, 0)))

	// Pre-floor spreads in bps: 0.00024 -> 2.40, 0.00012 -> 1.20.
	assert.Equal(t, "Bid spread: 2.40 bps | Ask spread: 1.20 bps | Inv norm: 0.000", q.Status())
}
