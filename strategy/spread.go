// Package strategy turns indicator values and account state into quote
// prices: volatility-scaled spreads, MACD trend skew, inventory penalty,
// and a no-cross guard. All arithmetic is exact decimal.
package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pmm-quoter/indicator"
	"pmm-quoter/inventory"
)

// SpreadConfig holds the static spread-composition scalars. Immutable
// after construction.
type SpreadConfig struct {
	BidNATRScalar decimal.Decimal // NATR multiple for the bid side, typically wider
	AskNATRScalar decimal.Decimal // NATR multiple for the ask side
	MACDWeight    decimal.Decimal // spread shift per unit of MACD histogram
	InventoryPhi  decimal.Decimal // penalty per unit of normalized inventory
	MaxInventory  decimal.Decimal // cap used to normalize the base balance
	MinSpread     decimal.Decimal // floor applied after all adjustments
}

// Spreads is the model output, both sides as fractions of the reference
// price. RawBid/RawAsk are the pre-floor values kept for status
// reporting; Bid/Ask have the floor applied and drive quoting.
type Spreads struct {
	Bid     decimal.Decimal
	Ask     decimal.Decimal
	RawBid  decimal.Decimal
	RawAsk  decimal.Decimal
	InvNorm decimal.Decimal
}

// SpreadModel composes bid/ask spreads. Pure computation, no state.
type SpreadModel struct {
	cfg SpreadConfig
}

// NewSpreadModel validates the scalars and returns a model.
func NewSpreadModel(cfg SpreadConfig) (*SpreadModel, error) {
	if cfg.BidNATRScalar.Sign() <= 0 || cfg.AskNATRScalar.Sign() <= 0 {
		return nil, fmt.Errorf("natr scalars must be > 0, got bid=%s ask=%s",
			cfg.BidNATRScalar, cfg.AskNATRScalar)
	}
	if cfg.MaxInventory.Sign() <= 0 {
		return nil, fmt.Errorf("max inventory must be > 0, got %s", cfg.MaxInventory)
	}
	if cfg.MinSpread.Sign() <= 0 {
		return nil, fmt.Errorf("min spread must be > 0, got %s", cfg.MinSpread)
	}
	if cfg.InventoryPhi.Sign() < 0 {
		return nil, fmt.Errorf("inventory phi must be >= 0, got %s", cfg.InventoryPhi)
	}
	return &SpreadModel{cfg: cfg}, nil
}

var one = decimal.NewFromInt(1)

// Compute derives spreads from the latest snapshot and the base-asset
// balance. Stage order matters: each stage adjusts the prior result.
func (m *SpreadModel) Compute(snap indicator.Snapshot, baseBalance decimal.Decimal) Spreads {
	// 1. Base volatility spread.
	bid := snap.NATR.Mul(m.cfg.BidNATRScalar)
	ask := snap.NATR.Mul(m.cfg.AskNATRScalar)

	// 2. Trend skew: bullish momentum quotes the bid tighter and the
	// ask wider; bearish momentum does the opposite.
	skew := m.cfg.MACDWeight.Mul(snap.MACDHist)
	bid = bid.Sub(skew)
	ask = ask.Add(skew)

	// 3. Inventory penalty: a long position widens the bid and narrows
	// the ask, steering fills toward risk reduction.
	invNorm := inventory.Norm(baseBalance, m.cfg.MaxInventory)
	penalty := m.cfg.InventoryPhi.Mul(invNorm)
	bid = bid.Add(penalty)
	ask = ask.Sub(penalty)

	// 4. Floor. Spreads at or below zero would cross or give away edge.
	return Spreads{
		Bid:     decimal.Max(bid, m.cfg.MinSpread),
		Ask:     decimal.Max(ask, m.cfg.MinSpread),
		RawBid:  bid,
		RawAsk:  ask,
		InvNorm: invNorm,
	}
}
