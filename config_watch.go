package svcinstall

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"vawter.tech/stopper"
)

// configDebounce coalesces the write bursts editors and atomic renames
// produce into a single reload.
const configDebounce = 250 * time.Millisecond

// ConfigWatcher reloads the configuration when its file changes and
// pushes the result to the monitor.
type ConfigWatcher struct {
	cm  *ConfigManager
	mon *Monitor
	log zerolog.Logger

	mu        sync.Mutex
	sctx      *stopper.Context
	debouncer *time.Timer
}

// NewConfigWatcher creates a watcher tying a config manager to a monitor.
func NewConfigWatcher(cm *ConfigManager, mon *Monitor, log zerolog.Logger) *ConfigWatcher {
	return &ConfigWatcher{cm: cm, mon: mon, log: log}
}

// Start watches the config file's directory. Watching the directory
// instead of the file survives atomic replace-by-rename writes.
func (w *ConfigWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sctx != nil {
		return ErrMonitorRunning
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	dir := filepath.Dir(w.cm.Path())
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return err
	}

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
	})
	w.sctx = sctx

	target := filepath.Base(w.cm.Path())
	sctx.Go(func(sctx *stopper.Context) error {
		sctx.Defer(func() {
			w.mu.Lock()
			if w.debouncer != nil {
				w.debouncer.Stop()
			}
			w.mu.Unlock()
		})

		for {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				w.mu.Lock()
				if w.debouncer != nil {
					w.debouncer.Stop()
				}
				w.debouncer = time.AfterFunc(configDebounce, w.reload)
				w.mu.Unlock()

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				if err != nil {
					w.log.Warn().Err(err).Msg("config watch error")
				}
			}
		}
	})
	return nil
}

// Stop stops the watcher and waits for in-flight work.
func (w *ConfigWatcher) Stop() {
	w.mu.Lock()
	sctx := w.sctx
	w.sctx = nil
	w.mu.Unlock()
	if sctx == nil {
		return
	}
	sctx.Stop(monitorStopGrace)
	_ = sctx.Wait()
}

func (w *ConfigWatcher) reload() {
	cfg := w.cm.Reload()
	w.log.Info().Str("path", w.cm.Path()).Msg("configuration reloaded")
	if w.mon != nil {
		w.mon.UpdateConfig(cfg)
	}
}
