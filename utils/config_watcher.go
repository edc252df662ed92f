package utils

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/cppla/postdesk/config"
)

// ConfigWatcher reloads the config file when it changes and applies the
// settings that are safe to change at runtime.
type ConfigWatcher struct {
	path      string
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	stopCh    chan struct{}
	stopOnce  sync.Once

	mu        sync.Mutex
	callbacks []func(config.AppConfig)
}

// WatchConfig starts watching path. The directory is watched rather than the
// file so that editors which replace the file on save are still noticed.
func WatchConfig(path string, delay time.Duration) (*ConfigWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	w := &ConfigWatcher{
		path:      filepath.Clean(path),
		watcher:   fsw,
		debouncer: NewDebouncer(delay),
		stopCh:    make(chan struct{}),
	}
	go w.watchLoop()
	Logger.Info("config hot reloading enabled", zap.String("path", path))
	return w, nil
}

// OnReload registers fn to receive every successfully reloaded config.
func (w *ConfigWatcher) OnReload(fn func(config.AppConfig)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

func (w *ConfigWatcher) watchLoop() {
	defer w.watcher.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.debouncer.Trigger(w.reload)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			Logger.Error("config watcher error", zap.Error(err))
		case <-w.stopCh:
			return
		}
	}
}

func (w *ConfigWatcher) reload() {
	c, err := config.LoadFrom(w.path)
	if err != nil {
		Logger.Warn("config reload failed, keeping current settings", zap.Error(err))
		return
	}
	config.Set(c)
	SetLogLevel(c.LogLevel)
	Logger.Info("config reloaded", zap.String("log_level", c.LogLevel))

	w.mu.Lock()
	callbacks := append([]func(config.AppConfig){}, w.callbacks...)
	w.mu.Unlock()
	for _, fn := range callbacks {
		fn(c)
	}
}

// Close stops watching.
func (w *ConfigWatcher) Close() error {
	w.stopOnce.Do(func() {
		w.debouncer.Stop()
		close(w.stopCh)
	})
	return nil
}
