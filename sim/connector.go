// Package sim provides an in-memory paper-trade venue: balances, a
// synthetic top of book around the last candle close, resting limit
// orders with candle-range fills, and a per-leg funding check.
package sim

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"pmm-quoter/inventory"
	"pmm-quoter/market"
	"pmm-quoter/order"
)

// Config wires the paper venue to its market data and account.
type Config struct {
	TradingPair string // display form, e.g. ETH-USDT
	Symbol      string // exchange form, e.g. ETHUSDT
	BaseAsset   string
	QuoteAsset  string
	Window      *market.Window
	Account     *inventory.Account
	BookTick    decimal.Decimal // synthetic half-spread around mid, e.g. 0.0001
	Ready       func() bool     // extra readiness signal, e.g. feed connectivity
}

type restingOrder struct {
	id     string
	side   order.Side
	amount decimal.Decimal
	price  decimal.Decimal
}

// PaperConnector simulates the exchange collaborator.
type PaperConnector struct {
	cfg Config

	mu       sync.Mutex
	orders   map[string]restingOrder
	nextID   int
	fillHook func(order.FillEvent)
}

// New creates the paper venue.
func New(cfg Config) (*PaperConnector, error) {
	if cfg.Window == nil || cfg.Account == nil {
		return nil, errors.New("paper connector requires window and account")
	}
	if cfg.BookTick.Sign() <= 0 {
		cfg.BookTick = decimal.RequireFromString("0.0001")
	}
	return &PaperConnector{
		cfg:    cfg,
		orders: make(map[string]restingOrder),
	}, nil
}

// SetFillHook registers the fill-notification callback.
func (p *PaperConnector) SetFillHook(hook func(order.FillEvent)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fillHook = hook
}

// IsTradingReady reports whether quoting may run: market data present
// and the optional readiness signal true.
func (p *PaperConnector) IsTradingReady() bool {
	if p.cfg.Ready != nil && !p.cfg.Ready() {
		return false
	}
	return p.cfg.Window.Len() > 0
}

// Balance returns the current paper balance of asset.
func (p *PaperConnector) Balance(asset string) (decimal.Decimal, error) {
	return p.cfg.Account.Balance(asset), nil
}

// MidPrice derives the reference price from the last candle close.
func (p *PaperConnector) MidPrice(symbol string) (decimal.Decimal, error) {
	if !strings.EqualFold(symbol, p.cfg.Symbol) {
		return decimal.Decimal{}, fmt.Errorf("unknown symbol %q", symbol)
	}
	last, ok := p.cfg.Window.Last()
	if !ok {
		return decimal.Decimal{}, errors.New("no market data")
	}
	return last.Close, nil
}

var one = decimal.NewFromInt(1)

// BestBid is the synthetic top of book one tick under mid.
func (p *PaperConnector) BestBid(symbol string) (decimal.Decimal, error) {
	mid, err := p.MidPrice(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return mid.Mul(one.Sub(p.cfg.BookTick)), nil
}

// BestAsk is the synthetic top of book one tick over mid.
func (p *PaperConnector) BestAsk(symbol string) (decimal.Decimal, error) {
	mid, err := p.MidPrice(symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return mid.Mul(one.Add(p.cfg.BookTick)), nil
}

// OpenOrders lists the resting orders for the instrument.
func (p *PaperConnector) OpenOrders(symbol string) ([]order.OpenOrder, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]order.OpenOrder, 0, len(p.orders))
	for _, o := range p.orders {
		out = append(out, order.OpenOrder{ID: o.id, Side: o.side})
	}
	return out, nil
}

// Cancel removes a resting order.
func (p *PaperConnector) Cancel(symbol, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.orders[orderID]; !ok {
		return fmt.Errorf("unknown order %s", orderID)
	}
	delete(p.orders, orderID)
	return nil
}

// SubmitBuy rests a buy limit order.
func (p *PaperConnector) SubmitBuy(symbol string, amount, price decimal.Decimal) error {
	return p.submit(order.Buy, amount, price)
}

// SubmitSell rests a sell limit order.
func (p *PaperConnector) SubmitSell(symbol string, amount, price decimal.Decimal) error {
	return p.submit(order.Sell, amount, price)
}

func (p *PaperConnector) submit(side order.Side, amount, price decimal.Decimal) error {
	if amount.Sign() <= 0 || price.Sign() <= 0 {
		return fmt.Errorf("invalid %s order: amount=%s price=%s", side, amount, price)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("paper-%d", p.nextID)
	p.orders[id] = restingOrder{id: id, side: side, amount: amount, price: price}
	return nil
}

// AdjustForFunding shrinks each leg to what the paper balances can
// fund, dropping a leg at zero. Legs are independent unless allOrNone
// is set, in which case any shortfall drops the whole batch.
func (p *PaperConnector) AdjustForFunding(intents []order.Intent, allOrNone bool) ([]order.Intent, error) {
	adjusted := make([]order.Intent, 0, len(intents))
	shrunk := false
	for _, it := range intents {
		out := it
		switch it.Side {
		case order.Buy:
			if it.Price.Sign() <= 0 {
				return nil, fmt.Errorf("buy intent with price %s", it.Price)
			}
			avail := p.cfg.Account.Balance(p.cfg.QuoteAsset)
			if need := it.Amount.Mul(it.Price); need.GreaterThan(avail) {
				out.Amount = avail.Div(it.Price).RoundDown(8)
				shrunk = true
			}
		case order.Sell:
			avail := p.cfg.Account.Balance(p.cfg.BaseAsset)
			if it.Amount.GreaterThan(avail) {
				out.Amount = avail.RoundDown(8)
				shrunk = true
			}
		default:
			return nil, fmt.Errorf("unknown side %q", it.Side)
		}
		if out.Amount.Sign() > 0 {
			adjusted = append(adjusted, out)
		}
	}
	if allOrNone && shrunk {
		return nil, nil
	}
	return adjusted, nil
}

// Match fills resting orders the candle's range would have touched:
// buys at or above the low, sells at or below the high. Fills settle
// against the account and fire the fill hook.
func (p *PaperConnector) Match(c market.Candle) {
	p.mu.Lock()
	var fills []order.FillEvent
	for id, o := range p.orders {
		filled := false
		switch o.side {
		case order.Buy:
			filled = c.Low.LessThanOrEqual(o.price)
		case order.Sell:
			filled = c.High.GreaterThanOrEqual(o.price)
		}
		if !filled {
			continue
		}
		delete(p.orders, id)
		if o.side == order.Buy {
			p.cfg.Account.Add(p.cfg.BaseAsset, o.amount)
			p.cfg.Account.Add(p.cfg.QuoteAsset, o.amount.Mul(o.price).Neg())
		} else {
			p.cfg.Account.Add(p.cfg.BaseAsset, o.amount.Neg())
			p.cfg.Account.Add(p.cfg.QuoteAsset, o.amount.Mul(o.price))
		}
		fills = append(fills, order.FillEvent{
			Symbol: p.cfg.TradingPair,
			Side:   o.side,
			Amount: o.amount,
			Price:  o.price,
		})
	}
	hook := p.fillHook
	p.mu.Unlock()

	if hook != nil {
		for _, ev := range fills {
			hook(ev)
		}
	}
}
