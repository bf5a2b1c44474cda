package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pmm-quoter/config"
	"pmm-quoter/indicator"
	"pmm-quoter/infrastructure/logger"
	"pmm-quoter/infrastructure/monitor"
	"pmm-quoter/internal/engine"
	"pmm-quoter/inventory"
	"pmm-quoter/market"
	"pmm-quoter/order"
	"pmm-quoter/sim"
	"pmm-quoter/strategy"
)

func main() {
	cfgPath := flag.String("config", "configs/quoter.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Hot reload: a changed config tears the running quoter down and
	// rebuilds it; components themselves stay immutable.
	reloadCh := make(chan config.AppConfig, 1)
	watcher, err := config.NewWatcher(*cfgPath)
	if err != nil {
		log.Fatalf("config watcher: %v", err)
	}
	defer watcher.Close()
	err = watcher.Start(ctx,
		func(newCfg config.AppConfig) {
			select {
			case reloadCh <- newCfg:
			default:
			}
		},
		func(err error) { log.Printf("config reload rejected: %v", err) })
	if err != nil {
		log.Fatalf("config watcher: %v", err)
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	defer daemon.SdNotify(false, daemon.SdNotifyStopping)

	for {
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- run(runCtx, cfg) }()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return
		case newCfg := <-reloadCh:
			log.Printf("config changed, rebuilding quoter")
			cancel()
			<-done
			cfg = newCfg
		case err := <-done:
			cancel()
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Fatalf("quoter stopped: %v", err)
			}
			return
		}
	}
}

// run builds the full pipeline from one immutable config and drives it
// until ctx is canceled.
func run(ctx context.Context, cfg config.AppConfig) error {
	zlog, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer zlog.Sync()

	mon := monitor.New(monitor.DefaultConfig())

	window := market.NewWindow(cfg.Candles.MaxRecords)
	feed := market.NewKlineFeed(cfg.Symbol(), cfg.Candles.Interval, window, zlog)
	if err := feed.Start(ctx); err != nil {
		return fmt.Errorf("start candle feed: %w", err)
	}
	defer feed.Stop()

	balances := make(map[string]decimal.Decimal, len(cfg.Paper.Balances))
	for asset, value := range cfg.Paper.Balances {
		balances[asset] = decimal.RequireFromString(value)
	}
	account := inventory.NewAccount(balances)

	paper, err := sim.New(sim.Config{
		TradingPair: cfg.TradingPair,
		Symbol:      cfg.Symbol(),
		BaseAsset:   cfg.BaseAsset(),
		QuoteAsset:  cfg.QuoteAsset(),
		Window:      window,
		Account:     account,
		Ready:       feed.Connected,
	})
	if err != nil {
		return fmt.Errorf("build paper connector: %w", err)
	}

	indicators, err := indicator.NewEngine(indicator.Config{
		NATRLength: cfg.Indicators.NATRLength,
		MACDFast:   cfg.Indicators.MACDFast,
		MACDSlow:   cfg.Indicators.MACDSlow,
		MACDSignal: cfg.Indicators.MACDSignal,
	})
	if err != nil {
		return fmt.Errorf("build indicator engine: %w", err)
	}

	spreads, err := strategy.NewSpreadModel(strategy.SpreadConfig{
		BidNATRScalar: decimal.RequireFromString(cfg.Spreads.BidNATRScalar),
		AskNATRScalar: decimal.RequireFromString(cfg.Spreads.AskNATRScalar),
		MACDWeight:    decimal.RequireFromString(cfg.Spreads.MACDWeight),
		InventoryPhi:  decimal.RequireFromString(cfg.Spreads.InventoryPhi),
		MaxInventory:  decimal.RequireFromString(cfg.Spreads.MaxInventory),
		MinSpread:     decimal.RequireFromString(cfg.Spreads.MinSpread),
	})
	if err != nil {
		return fmt.Errorf("build spread model: %w", err)
	}

	reconciler, err := order.NewReconciler(
		cfg.Symbol(), decimal.RequireFromString(cfg.Order.Amount), paper, paper)
	if err != nil {
		return fmt.Errorf("build reconciler: %w", err)
	}

	quoter, err := engine.New(engine.Config{
		TradingPair:     cfg.TradingPair,
		Symbol:          cfg.Symbol(),
		BaseAsset:       cfg.BaseAsset(),
		RefreshInterval: time.Duration(cfg.Order.RefreshSeconds) * time.Second,
	}, engine.Components{
		Indicators: indicators,
		Spreads:    spreads,
		Reconciler: reconciler,
		Connector:  paper,
		Candles:    window,
		Logger:     zlog,
		Monitor:    mon,
	})
	if err != nil {
		return fmt.Errorf("build quoter: %w", err)
	}
	paper.SetFillHook(quoter.OnOrderFilled)

	srv := serveHTTP(cfg.Metrics.Addr, mon, quoter, zlog)
	if srv != nil {
		defer shutdownHTTP(srv)
	}

	zlog.Info("quoter started",
		zap.String("env", cfg.Env),
		zap.String("exchange", cfg.Exchange),
		zap.String("pair", cfg.TradingPair),
		zap.Int("refresh_seconds", cfg.Order.RefreshSeconds))

	// One invocation per second; the quoter itself enforces the refresh
	// interval and the readiness gates.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := quoter.Tick(now); err != nil {
				zlog.Error("quoting cycle failed", zap.Error(err))
			}
			if last, ok := window.Last(); ok {
				paper.Match(last)
			}
		}
	}
}

func serveHTTP(addr string, mon *monitor.Monitor, quoter *engine.Quoter, zlog *zap.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", mon.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintln(w, quoter.Status())
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
