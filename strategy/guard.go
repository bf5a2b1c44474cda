package strategy

import "github.com/shopspring/decimal"

// QuotePair is the per-tick pair of absolute prices. After clipping,
// BuyPrice never exceeds the best bid and SellPrice never undercuts the
// best ask.
type QuotePair struct {
	BuyPrice  decimal.Decimal
	SellPrice decimal.Decimal
}

// QuoteGuard maps spreads onto absolute prices and keeps them from
// crossing the live book.
type QuoteGuard struct{}

// Clip computes the quote pair from the reference mid and clips both
// sides against the top of book, so a fresh quote is never immediately
// marketable. A momentarily locked or crossed external book still gets
// the literal min/max treatment.
func (QuoteGuard) Clip(refPrice decimal.Decimal, spreads Spreads, bestBid, bestAsk decimal.Decimal) QuotePair {
	buy := refPrice.Mul(one.Sub(spreads.Bid))
	sell := refPrice.Mul(one.Add(spreads.Ask))
	return QuotePair{
		BuyPrice:  decimal.Min(buy, bestBid),
		SellPrice: decimal.Max(sell, bestAsk),
	}
}
