package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Validate ensures required fields are present and every decimal string
// parses exactly. After Validate passes, decimal.RequireFromString on
// these fields cannot panic.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Exchange == "" {
		return errors.New("exchange is required")
	}
	if !strings.Contains(cfg.TradingPair, "-") {
		return fmt.Errorf("trading_pair must be BASE-QUOTE, got %q", cfg.TradingPair)
	}

	if err := requirePositiveDecimal("order.amount", cfg.Order.Amount); err != nil {
		return err
	}
	if cfg.Order.RefreshSeconds <= 0 {
		return errors.New("order.refresh_seconds must be > 0")
	}

	if cfg.Candles.Interval == "" {
		return errors.New("candles.interval is required")
	}
	if cfg.Candles.MaxRecords <= 0 {
		return errors.New("candles.max_records must be > 0")
	}

	ind := cfg.Indicators
	if ind.NATRLength <= 0 {
		return errors.New("indicators.natr_length must be > 0")
	}
	if ind.MACDFast <= 0 || ind.MACDSlow <= 0 || ind.MACDSignal <= 0 {
		return errors.New("indicators.macd periods must be > 0")
	}
	if ind.MACDFast >= ind.MACDSlow {
		return errors.New("indicators.macd_fast must be < macd_slow")
	}

	sp := cfg.Spreads
	for name, value := range map[string]string{
		"spreads.bid_natr_scalar": sp.BidNATRScalar,
		"spreads.ask_natr_scalar": sp.AskNATRScalar,
		"spreads.max_inventory":   sp.MaxInventory,
		"spreads.min_spread":      sp.MinSpread,
	} {
		if err := requirePositiveDecimal(name, value); err != nil {
			return err
		}
	}
	for name, value := range map[string]string{
		"spreads.macd_weight":   sp.MACDWeight,
		"spreads.inventory_phi": sp.InventoryPhi,
	} {
		if err := requireNonNegativeDecimal(name, value); err != nil {
			return err
		}
	}

	for asset, value := range cfg.Paper.Balances {
		if err := requireNonNegativeDecimal("paper.balances."+asset, value); err != nil {
			return err
		}
	}
	return nil
}

func requirePositiveDecimal(name, value string) error {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%s: invalid decimal %q: %w", name, value, err)
	}
	if d.Sign() <= 0 {
		return fmt.Errorf("%s must be > 0, got %s", name, d)
	}
	return nil
}

func requireNonNegativeDecimal(name, value string) error {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%s: invalid decimal %q: %w", name, value, err)
	}
	if d.Sign() < 0 {
		return fmt.Errorf("%s must be >= 0, got %s", name, d)
	}
	return nil
}
