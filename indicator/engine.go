// Package indicator computes the volatility and momentum inputs of the
// quoting pipeline from a candle window, entirely in exact decimals.
package indicator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"pmm-quoter/market"
)

// Config holds the indicator lookback periods.
type Config struct {
	NATRLength int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// Snapshot is the per-tick indicator output. Recomputed every cycle,
// never persisted.
type Snapshot struct {
	NATR     decimal.Decimal // ATR normalized by close, fraction of price
	MACDHist decimal.Decimal // MACD line minus its signal line
}

// Result is either a ready snapshot or a skip reason. A not-ready result
// is not an error: the caller skips the cycle without placing orders.
type Result struct {
	snapshot Snapshot
	ready    bool
	reason   string
}

// Ready wraps a computed snapshot.
func Ready(s Snapshot) Result {
	return Result{snapshot: s, ready: true}
}

// NotReady carries the skip reason.
func NotReady(reason string) Result {
	return Result{reason: reason}
}

// Snapshot returns the snapshot and whether it is usable.
func (r Result) Snapshot() (Snapshot, bool) {
	return r.snapshot, r.ready
}

// Reason returns the skip reason for a not-ready result.
func (r Result) Reason() string {
	return r.reason
}

// Engine computes NATR and the MACD histogram over a candle window.
type Engine struct {
	cfg Config
}

// NewEngine validates the periods and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.NATRLength <= 0 {
		return nil, fmt.Errorf("natr length must be > 0, got %d", cfg.NATRLength)
	}
	if cfg.MACDFast <= 0 || cfg.MACDSlow <= 0 || cfg.MACDSignal <= 0 {
		return nil, fmt.Errorf("macd periods must be > 0, got %d/%d/%d",
			cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
	}
	if cfg.MACDFast >= cfg.MACDSlow {
		return nil, fmt.Errorf("macd fast period %d must be < slow period %d",
			cfg.MACDFast, cfg.MACDSlow)
	}
	return &Engine{cfg: cfg}, nil
}

// MinRecords is the window length required before any value is produced.
func (e *Engine) MinRecords() int {
	need := e.cfg.MACDSlow + e.cfg.MACDSignal
	if e.cfg.NATRLength > need {
		need = e.cfg.NATRLength
	}
	return need
}

// Compute derives the latest snapshot from the window, oldest candle
// first. Insufficient history or a non-computable latest value yields
// NotReady; the cycle must then be skipped entirely.
func (e *Engine) Compute(candles []market.Candle) Result {
	if len(candles) < e.MinRecords() {
		return NotReady("insufficient candle history")
	}
	last := candles[len(candles)-1]
	if last.Close.Sign() <= 0 {
		return NotReady("non-positive close")
	}

	natr, ok := e.natr(candles)
	if !ok {
		return NotReady("natr value missing")
	}
	hist, ok := e.macdHist(candles)
	if !ok {
		return NotReady("macd histogram missing")
	}
	return Ready(Snapshot{NATR: natr, MACDHist: hist})
}

// natr computes the Wilder-smoothed average true range of the latest
// candle, divided by its close.
func (e *Engine) natr(candles []market.Candle) (decimal.Decimal, bool) {
	length := e.cfg.NATRLength
	// True range needs the previous close, so one extra candle.
	if len(candles) < length+1 {
		return decimal.Decimal{}, false
	}

	trs := make([]decimal.Decimal, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prevClose := candles[i-1].Close
		h, l := candles[i].High, candles[i].Low
		tr := decimal.Max(h.Sub(l), h.Sub(prevClose).Abs(), l.Sub(prevClose).Abs())
		trs = append(trs, tr)
	}

	// Seed with the simple average, then Wilder smoothing:
	// atr = (atr*(n-1) + tr) / n.
	n := decimal.NewFromInt(int64(length))
	atr := sum(trs[:length]).Div(n)
	nMinus1 := decimal.NewFromInt(int64(length - 1))
	for _, tr := range trs[length:] {
		atr = atr.Mul(nMinus1).Add(tr).Div(n)
	}

	lastClose := candles[len(candles)-1].Close
	if lastClose.Sign() <= 0 {
		return decimal.Decimal{}, false
	}
	return atr.Div(lastClose), true
}

// macdHist computes (EMA_fast − EMA_slow) − signal EMA of that difference
// for the latest candle.
func (e *Engine) macdHist(candles []market.Candle) (decimal.Decimal, bool) {
	closes := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}

	emaFast, fastStart := ema(closes, e.cfg.MACDFast)
	emaSlow, slowStart := ema(closes, e.cfg.MACDSlow)
	if fastStart < 0 || slowStart < 0 {
		return decimal.Decimal{}, false
	}

	// MACD line exists wherever the slow EMA does.
	macdLine := make([]decimal.Decimal, 0, len(closes)-slowStart)
	for i := slowStart; i < len(closes); i++ {
		macdLine = append(macdLine, emaFast[i].Sub(emaSlow[i]))
	}

	signal, sigStart := ema(macdLine, e.cfg.MACDSignal)
	if sigStart < 0 {
		return decimal.Decimal{}, false
	}
	lastIdx := len(macdLine) - 1
	return macdLine[lastIdx].Sub(signal[lastIdx]), true
}

// ema returns the exponential moving average aligned with values,
// seeded with the simple average of the first period entries. Entries
// before the returned start index are undefined. start is -1 when the
// series is too short.
func ema(values []decimal.Decimal, period int) ([]decimal.Decimal, int) {
	if len(values) < period {
		return nil, -1
	}
	out := make([]decimal.Decimal, len(values))
	p := decimal.NewFromInt(int64(period))
	alpha := decimal.NewFromInt(2).Div(p.Add(decimal.NewFromInt(1)))
	oneMinusAlpha := decimal.NewFromInt(1).Sub(alpha)

	start := period - 1
	out[start] = sum(values[:period]).Div(p)
	for i := period; i < len(values); i++ {
		out[i] = alpha.Mul(values[i]).Add(oneMinusAlpha.Mul(out[i-1]))
	}
	return out, start
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
