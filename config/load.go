// Package config loads and validates the static quoter configuration.
// The parsed struct is immutable; components receive copies at
// construction and hold no process-wide mutable state.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pmm-quoter/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env         string          `yaml:"env"`
	Exchange    string          `yaml:"exchange"`
	TradingPair string          `yaml:"trading_pair"` // BASE-QUOTE, e.g. ETH-USDT
	Order       OrderConfig     `yaml:"order"`
	Candles     CandlesConfig   `yaml:"candles"`
	Indicators  IndicatorConfig `yaml:"indicators"`
	Spreads     SpreadConfig    `yaml:"spreads"`
	Paper       PaperConfig     `yaml:"paper"`
	Logging     logger.Config   `yaml:"logging"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

// OrderConfig controls order sizing and the refresh cadence.
type OrderConfig struct {
	Amount         string `yaml:"amount"` // base-asset amount per leg
	RefreshSeconds int    `yaml:"refresh_seconds"`
}

// CandlesConfig describes the candle feed subscription.
type CandlesConfig struct {
	Connector  string `yaml:"connector"` // e.g. binance
	Interval   string `yaml:"interval"`  // e.g. 1m
	MaxRecords int    `yaml:"max_records"`
}

// IndicatorConfig holds the indicator lookbacks.
type IndicatorConfig struct {
	NATRLength int `yaml:"natr_length"`
	MACDFast   int `yaml:"macd_fast"`
	MACDSlow   int `yaml:"macd_slow"`
	MACDSignal int `yaml:"macd_signal"`
}

// SpreadConfig carries the spread scalars as decimal strings; Validate
// checks that each parses exactly.
type SpreadConfig struct {
	BidNATRScalar string `yaml:"bid_natr_scalar"`
	AskNATRScalar string `yaml:"ask_natr_scalar"`
	MACDWeight    string `yaml:"macd_weight"`
	InventoryPhi  string `yaml:"inventory_phi"`
	MaxInventory  string `yaml:"max_inventory"`
	MinSpread     string `yaml:"min_spread"`
}

// PaperConfig seeds the paper-trade venue.
type PaperConfig struct {
	Balances map[string]string `yaml:"balances"` // asset -> decimal string
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the listener
}

// Load reads YAML config from path and applies validation.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyEnvOverrides(&cfg)
	if cfg.Logging.Level == "" {
		cfg.Logging = logger.DefaultConfig()
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnvOverrides lets deployment-level settings win over the file.
func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PMM_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("PMM_EXCHANGE"); v != "" {
		cfg.Exchange = v
	}
	if v := os.Getenv("PMM_TRADING_PAIR"); v != "" {
		cfg.TradingPair = v
	}
	if v := os.Getenv("PMM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PMM_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// BaseAsset returns the base leg of the trading pair.
func (c AppConfig) BaseAsset() string {
	base, _, _ := strings.Cut(c.TradingPair, "-")
	return base
}

// QuoteAsset returns the quote leg of the trading pair.
func (c AppConfig) QuoteAsset() string {
	_, quote, _ := strings.Cut(c.TradingPair, "-")
	return quote
}

// Symbol returns the exchange symbol form of the pair, e.g. ETHUSDT.
func (c AppConfig) Symbol() string {
	return strings.ToUpper(strings.ReplaceAll(c.TradingPair, "-", ""))
}
