package config

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads the config file on change and hands the freshly
// validated result to a callback. Components themselves stay immutable;
// the caller rebuilds them from the new config.
type Watcher struct {
	Path     string
	Cooldown time.Duration // minimum time between reloads

	watcher    *fsnotify.Watcher
	lastReload time.Time
}

// NewWatcher creates a watcher for path.
func NewWatcher(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		Path:     path,
		Cooldown: 5 * time.Second,
		watcher:  fw,
	}, nil
}

// Start watches until ctx is done. onUpdate receives each successfully
// reloaded config; a config that fails Load is reported via onError and
// the previous one stays in effect.
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig), onError func(error)) error {
	if err := w.watcher.Add(w.Path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	go w.loop(ctx, onUpdate, onError)
	return nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop(ctx context.Context, onUpdate func(AppConfig), onError func(error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if time.Since(w.lastReload) < w.Cooldown {
				continue
			}
			w.lastReload = time.Now()
			cfg, err := Load(w.Path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}
