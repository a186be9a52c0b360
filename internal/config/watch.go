package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"equitybot/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// ChangeListener receives every successfully reloaded configuration.
type ChangeListener func(*Config)

// Watcher keeps the latest valid configuration of a file and reloads it when
// the file changes. A reload that fails to parse or validate is logged and the
// previous configuration stays current.
type Watcher struct {
	path string
	v    *viper.Viper

	mu        sync.RWMutex
	current   *Config
	version   int64
	listeners []ChangeListener
}

func Watch(path string) (*Watcher, error) {
	w, err := newWatcher(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("watch config %s: %w", path, err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := w.Reload(); err != nil {
			logger.Errorf("[config] reload after %s failed: %v", evt.Op, err)
		}
	})
	v.WatchConfig()
	w.v = v
	return w, nil
}

func newWatcher(path string) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{path: path, current: cfg, version: 1}, nil
}

func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

func (w *Watcher) Version() int64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.version
}

func (w *Watcher) Subscribe(fn ChangeListener) {
	if fn == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Reload reads the file again and notifies listeners in subscription order.
func (w *Watcher) Reload() error {
	cfg, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = cfg
	w.version++
	listeners := append([]ChangeListener(nil), w.listeners...)
	w.mu.Unlock()
	logger.Infof("[config] reloaded %s (%d strategies)", filepath.Base(w.path), len(cfg.Strategies))
	for _, fn := range listeners {
		w.dispatch(fn, cfg)
	}
	return nil
}

func (w *Watcher) dispatch(fn ChangeListener, cfg *Config) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[config] listener panic: %v", r)
		}
	}()
	fn(cfg)
}
