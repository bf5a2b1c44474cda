// Package engine drives the quoting cycle: candles in, indicators,
// spreads, guarded quotes, order reconciliation, at a fixed wall-clock
// cadence.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pmm-quoter/indicator"
	"pmm-quoter/infrastructure/monitor"
	"pmm-quoter/market"
	"pmm-quoter/order"
	"pmm-quoter/strategy"
)

// Connector is the exchange-side read contract the cycle depends on.
// All reads are snapshots; nothing here blocks on I/O mid-cycle.
type Connector interface {
	IsTradingReady() bool
	Balance(asset string) (decimal.Decimal, error)
	MidPrice(symbol string) (decimal.Decimal, error)
	BestBid(symbol string) (decimal.Decimal, error)
	BestAsk(symbol string) (decimal.Decimal, error)
}

// CandleSource provides a read-only view of the feed-owned window.
type CandleSource interface {
	Snapshot() []market.Candle
}

// Config is the static per-instrument quoter configuration.
type Config struct {
	TradingPair     string // display form, e.g. ETH-USDT
	Symbol          string // exchange form, e.g. ETHUSDT
	BaseAsset       string
	RefreshInterval time.Duration
}

// Components are the collaborators wired at construction.
type Components struct {
	Indicators *indicator.Engine
	Spreads    *strategy.SpreadModel
	Reconciler *order.Reconciler
	Connector  Connector
	Candles    CandleSource
	Logger     *zap.Logger
	Monitor    *monitor.Monitor
}

// Quoter runs one synchronous quoting cycle per eligible tick. The
// caller invokes Tick from a single goroutine; a cycle always runs to
// completion before the next one is considered.
type Quoter struct {
	cfg   Config
	comps Components
	guard strategy.QuoteGuard

	mu       sync.Mutex
	nextTick time.Time

	// Last computed status metrics (pre-floor spreads), reporting only.
	lastBidSpread decimal.Decimal
	lastAskSpread decimal.Decimal
	lastInvNorm   decimal.Decimal
}

// New validates the wiring and returns a quoter.
func New(cfg Config, comps Components) (*Quoter, error) {
	if cfg.Symbol == "" || cfg.BaseAsset == "" {
		return nil, errors.New("quoter requires symbol and base asset")
	}
	if cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("refresh interval must be > 0, got %s", cfg.RefreshInterval)
	}
	if comps.Indicators == nil || comps.Spreads == nil || comps.Reconciler == nil ||
		comps.Connector == nil || comps.Candles == nil {
		return nil, errors.New("quoter requires indicators, spreads, reconciler, connector and candles")
	}
	if comps.Logger == nil {
		comps.Logger = zap.NewNop()
	}
	if comps.Monitor == nil {
		comps.Monitor = monitor.New(monitor.DefaultConfig())
	}
	return &Quoter{cfg: cfg, comps: comps}, nil
}

var bpsFactor = decimal.NewFromInt(10000)

// Tick runs one cycle when the wall clock has reached the next scheduled
// tick. Gate order: trading readiness first (skipping without advancing
// the schedule, so it retries on every invocation), then indicator
// readiness (a silent skip that does advance the schedule, so thin
// candle history retries at the refresh cadence instead of spinning).
// Collaborator and execution failures are propagated, never retried
// here.
func (q *Quoter) Tick(now time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if now.Before(q.nextTick) {
		return nil
	}
	if !q.comps.Connector.IsTradingReady() {
		q.comps.Monitor.RecordTickSkipped("trading_not_ready")
		return nil
	}

	res := q.comps.Indicators.Compute(q.comps.Candles.Snapshot())
	snap, ok := res.Snapshot()
	if !ok {
		q.comps.Monitor.RecordTickSkipped(res.Reason())
		q.nextTick = now.Add(q.cfg.RefreshInterval)
		return nil
	}

	balance, err := q.comps.Connector.Balance(q.cfg.BaseAsset)
	if err != nil {
		return fmt.Errorf("read %s balance: %w", q.cfg.BaseAsset, err)
	}
	spreads := q.comps.Spreads.Compute(snap, balance)

	refPrice, err := q.comps.Connector.MidPrice(q.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("read mid price: %w", err)
	}
	bestBid, err := q.comps.Connector.BestBid(q.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("read best bid: %w", err)
	}
	bestAsk, err := q.comps.Connector.BestAsk(q.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("read best ask: %w", err)
	}
	pair := q.guard.Clip(refPrice, spreads, bestBid, bestAsk)

	q.lastBidSpread = spreads.RawBid
	q.lastAskSpread = spreads.RawAsk
	q.lastInvNorm = spreads.InvNorm
	q.comps.Monitor.UpdateSpreads(
		spreads.RawBid.Mul(bpsFactor).InexactFloat64(),
		spreads.RawAsk.Mul(bpsFactor).InexactFloat64(),
		spreads.InvNorm.InexactFloat64())
	q.comps.Monitor.UpdateMidPrice(refPrice.InexactFloat64())

	q.comps.Logger.Debug("quoting",
		zap.String("natr", snap.NATR.String()),
		zap.String("macd_hist", snap.MACDHist.String()),
		zap.String("buy", pair.BuyPrice.String()),
		zap.String("sell", pair.SellPrice.String()))

	rep, rerr := q.comps.Reconciler.Reconcile(pair.BuyPrice, pair.SellPrice)
	q.comps.Monitor.RecordCancels(rep.Canceled)
	for _, it := range rep.Submitted {
		q.comps.Monitor.RecordSubmission(string(it.Side))
	}

	// The cycle ran; a venue rejection should not turn the refresh
	// interval into a hot retry loop.
	q.nextTick = now.Add(q.cfg.RefreshInterval)
	if rerr != nil {
		return fmt.Errorf("reconcile orders: %w", rerr)
	}
	q.comps.Monitor.RecordTickCompleted()
	return nil
}

// OnOrderFilled logs a fill notification. No state changes: the next
// cycle reads balances fresh.
func (q *Quoter) OnOrderFilled(ev order.FillEvent) {
	q.comps.Monitor.RecordFill(string(ev.Side))
	q.comps.Logger.Info(fmt.Sprintf("%s %s %s @ %s",
		ev.Side, ev.Amount.StringFixed(4), ev.Symbol, ev.Price.StringFixed(2)))
}

// Status formats the last computed spread and inventory metrics.
func (q *Quoter) Status() string {
	if !q.comps.Connector.IsTradingReady() {
		return "Market connectors are not ready."
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return fmt.Sprintf("Bid spread: %s bps | Ask spread: %s bps | Inv norm: %s",
		q.lastBidSpread.Mul(bpsFactor).StringFixed(2),
		q.lastAskSpread.Mul(bpsFactor).StringFixed(2),
		q.lastInvNorm.StringFixed(3))
}
