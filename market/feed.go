package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	defaultWSEndpoint = "wss://stream.binance.com:9443"
	readTimeout       = 30 * time.Second
)

// KlineFeed subscribes to a Binance kline stream and maintains a Window
// of closed candles. It owns the window; the trading core only reads
// snapshots.
type KlineFeed struct {
	Endpoint string
	Symbol   string // exchange symbol, e.g. ETHUSDT
	Interval string // e.g. 1m

	window *Window
	logger *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	cancel    context.CancelFunc

	retryBackoff time.Duration
	maxRetries   int
}

// NewKlineFeed creates a feed writing into window.
func NewKlineFeed(symbol, interval string, window *Window, logger *zap.Logger) *KlineFeed {
	return &KlineFeed{
		Endpoint:     defaultWSEndpoint,
		Symbol:       strings.ToUpper(symbol),
		Interval:     interval,
		window:       window,
		logger:       logger,
		retryBackoff: 3 * time.Second,
		maxRetries:   5,
	}
}

// Window returns the feed-owned candle window.
func (f *KlineFeed) Window() *Window {
	return f.window
}

// Connected reports whether the stream is currently up.
func (f *KlineFeed) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Start launches the read loop in the background.
func (f *KlineFeed) Start(ctx context.Context) error {
	if f.Symbol == "" || f.Interval == "" {
		return fmt.Errorf("kline feed requires symbol and interval")
	}
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	go f.run(ctx)
	return nil
}

// Stop closes the connection and halts reconnects.
func (f *KlineFeed) Stop() {
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Lock()
	if f.conn != nil {
		_ = f.conn.Close()
		f.conn = nil
	}
	f.connected = false
	f.mu.Unlock()
}

// run dials and reads, reconnecting with linear backoff.
func (f *KlineFeed) run(ctx context.Context) {
	retries := 0
	streamURL := fmt.Sprintf("%s/ws/%s@kline_%s", f.Endpoint, strings.ToLower(f.Symbol), f.Interval)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
		if err != nil {
			retries++
			if retries > f.maxRetries {
				f.logger.Error("kline stream gave up reconnecting",
					zap.String("url", streamURL), zap.Error(err))
				return
			}
			backoff := time.Duration(retries) * f.retryBackoff
			f.logger.Warn("kline stream dial failed",
				zap.Int("attempt", retries), zap.Duration("backoff", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			continue
		}
		retries = 0

		f.mu.Lock()
		f.conn = conn
		f.connected = true
		f.mu.Unlock()
		f.logger.Info("kline stream connected",
			zap.String("symbol", f.Symbol), zap.String("interval", f.Interval))

		f.readLoop(conn)

		f.mu.Lock()
		f.conn = nil
		f.connected = false
		f.mu.Unlock()
		f.logger.Warn("kline stream disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-time.After(f.retryBackoff):
		}
	}
}

func (f *KlineFeed) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			f.logger.Warn("kline stream read error", zap.Error(err))
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		f.HandleMessage(msg)
	}
}

// klineEvent mirrors the Binance kline stream payload.
type klineEvent struct {
	EventType string `json:"e"`
	Kline     struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

// HandleMessage parses one stream message and appends the candle when it
// closes. Unparseable prices are dropped; the indicator readiness check
// catches the resulting gap.
func (f *KlineFeed) HandleMessage(raw []byte) {
	var ev klineEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		f.logger.Warn("kline stream bad message", zap.Error(err))
		return
	}
	if ev.EventType != "kline" || !ev.Kline.Closed {
		return
	}
	k := ev.Kline
	candle, err := ParseCandle(k.Open, k.High, k.Low, k.Close, k.Volume, time.UnixMilli(k.OpenTime))
	if err != nil {
		f.logger.Warn("kline stream drop candle", zap.Error(err))
		return
	}
	f.window.Append(candle)
}
