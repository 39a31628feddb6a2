package app

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"garment-studio/internal/config"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ConfigReloader watches the configuration file and hands every valid new
// version to a callback. Editors that save by rename are handled by watching
// the parent directory.
type ConfigReloader struct {
	path     string
	debounce time.Duration

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timer    *time.Timer
	stopCh   chan struct{}
	doneCh   chan struct{}
	onReload func(*config.Config)
}

// NewConfigReloader creates a reloader for the config file at path.
func NewConfigReloader(path string, debounce time.Duration) *ConfigReloader {
	if debounce <= 0 {
		debounce = 300 * time.Millisecond
	}
	return &ConfigReloader{path: filepath.Clean(path), debounce: debounce}
}

// OnReload sets the callback invoked with each successfully reloaded config.
// The callback runs on a background goroutine.
func (r *ConfigReloader) OnReload(callback func(*config.Config)) {
	r.mu.Lock()
	r.onReload = callback
	r.mu.Unlock()
}

// Start begins watching in a background goroutine.
func (r *ConfigReloader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.watcher != nil {
		return errors.New("config reloader already started")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(r.path)); err != nil {
		w.Close()
		return err
	}
	r.watcher = w
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.watchLoop(w, r.stopCh, r.doneCh)
	return nil
}

// Stop stops the watcher goroutine and waits for it to exit.
func (r *ConfigReloader) Stop() {
	r.mu.Lock()
	if r.watcher == nil {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	done := r.doneCh
	w := r.watcher
	r.watcher = nil
	if r.timer != nil {
		r.timer.Stop()
	}
	r.mu.Unlock()

	<-done
	w.Close()
}

func (r *ConfigReloader) watchLoop(w *fsnotify.Watcher, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != r.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				r.schedule()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logrus.WithError(err).Warn("Config watcher error")
		}
	}
}

func (r *ConfigReloader) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, r.reload)
}

func (r *ConfigReloader) reload() {
	cfg, err := config.Load(r.path)
	if err != nil {
		logrus.WithError(err).WithField("path", r.path).Warn("Ignoring invalid config change")
		return
	}
	r.mu.Lock()
	cb := r.onReload
	r.mu.Unlock()

	logrus.WithField("path", r.path).Info("Config reloaded")
	if cb != nil {
		cb(cfg)
	}
}
