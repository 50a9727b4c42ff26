package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// debounceDelay coalesces editor write bursts into a single reload
const debounceDelay = 500 * time.Millisecond

// Watcher monitors the config file and triggers reloads on change
type Watcher struct {
	config    *Config
	watcher   *fsnotify.Watcher
	callbacks []func(*Config)
	stopCh    chan struct{}
	mu        sync.RWMutex
	running   bool
}

// NewWatcher creates a new configuration watcher
func NewWatcher(cfg *Config) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		config:  cfg,
		watcher: watcher,
		stopCh:  make(chan struct{}),
	}, nil
}

// AddCallback adds a callback invoked with the reloaded configuration
func (w *Watcher) AddCallback(callback func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Start starts watching for configuration changes
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher is already running")
	}

	// Watch the directory, not the file: editors replace the file on save
	// and a direct file watch is lost after the rename.
	if err := w.watcher.Add(filepath.Dir(w.config.ConfigFile())); err != nil {
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	w.running = true
	go w.loop()
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}
	w.running = false
	close(w.stopCh)
	_ = w.watcher.Close()
}

func (w *Watcher) loop() {
	var debounce *time.Timer
	configFile := w.config.ConfigFile()

	for {
		select {
		case <-w.stopCh:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != configFile {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(debounceDelay, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("Config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(filepath.Dir(w.config.ConfigFile()))
	if err != nil {
		logrus.WithError(err).Warn("Failed to reload config, keeping previous")
		return
	}

	w.mu.RLock()
	callbacks := make([]func(*Config), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.RUnlock()

	logrus.WithField("file", w.config.ConfigFile()).Info("Config reloaded")
	for _, cb := range callbacks {
		cb(cfg)
	}
}
