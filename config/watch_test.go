package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, validYAML)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()
	w.Cooldown = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan AppConfig, 1)
	errs := make(chan error, 1)
	require.NoError(t, w.Start(ctx,
		func(cfg AppConfig) {
			select {
			case updates <- cfg:
			default:
			}
		},
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		}))

	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	select {
	case cfg := <-updates:
		require.Equal(t, "ETH-USDT", cfg.TradingPair)
	case err := <-errs:
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within deadline")
	}
}

func TestWatcherRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, validYAML)

	w, err := NewWatcher(path)
	require.NoError(t, err)
	defer w.Close()
	w.Cooldown = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := make(chan AppConfig, 1)
	errs := make(chan error, 1)
	require.NoError(t, w.Start(ctx,
		func(cfg AppConfig) { updates <- cfg },
		func(err error) {
			select {
			case errs <- err:
			default:
			}
		}))

	require.NoError(t, os.WriteFile(path, []byte("env: ''\n"), 0o644))

	select {
	case <-errs:
		// Previous config stays in effect; nothing reaches onUpdate.
	case cfg := <-updates:
		t.Fatalf("invalid config accepted: %+v", cfg)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload attempt within deadline")
	}
}
