package market

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Candle holds one OHLCV record with exact decimal prices.
type Candle struct {
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
	Ts     time.Time
}

// ParseCandle converts wire-format string fields into a Candle.
// Exchanges ship prices as strings; parsing here keeps binary floating
// point out of every downstream computation.
func ParseCandle(open, high, low, closePx, volume string, ts time.Time) (Candle, error) {
	var c Candle
	var err error
	if c.Open, err = decimal.NewFromString(open); err != nil {
		return Candle{}, fmt.Errorf("parse open %q: %w", open, err)
	}
	if c.High, err = decimal.NewFromString(high); err != nil {
		return Candle{}, fmt.Errorf("parse high %q: %w", high, err)
	}
	if c.Low, err = decimal.NewFromString(low); err != nil {
		return Candle{}, fmt.Errorf("parse low %q: %w", low, err)
	}
	if c.Close, err = decimal.NewFromString(closePx); err != nil {
		return Candle{}, fmt.Errorf("parse close %q: %w", closePx, err)
	}
	if c.Volume, err = decimal.NewFromString(volume); err != nil {
		return Candle{}, fmt.Errorf("parse volume %q: %w", volume, err)
	}
	c.Ts = ts
	return c, nil
}

// Window is a bounded, time-ordered candle buffer. The feed appends,
// evicting the oldest record past MaxRecords; consumers read copies.
type Window struct {
	maxRecords int
	mu         sync.RWMutex
	candles    []Candle
}

// NewWindow creates a window bounded to maxRecords candles.
func NewWindow(maxRecords int) *Window {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	return &Window{
		maxRecords: maxRecords,
		candles:    make([]Candle, 0, maxRecords),
	}
}

// Append adds a closed candle, evicting the oldest when full.
func (w *Window) Append(c Candle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.candles = append(w.candles, c)
	if len(w.candles) > w.maxRecords {
		w.candles = w.candles[1:]
	}
}

// Snapshot returns a copy of the current window, oldest first.
func (w *Window) Snapshot() []Candle {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Candle, len(w.candles))
	copy(out, w.candles)
	return out
}

// Len reports the number of buffered candles.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.candles)
}

// Last returns the most recent candle, if any.
func (w *Window) Last() (Candle, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.candles) == 0 {
		return Candle{}, false
	}
	return w.candles[len(w.candles)-1], true
}
