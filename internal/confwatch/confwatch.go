// Package confwatch watches the server's YAML configuration file for
// changes and hot-reloads it: an fsnotify watcher feeding a debounce
// timer feeding a reload callback, with an error handler and a running
// flag guarded by its own mutex. The main thing an operator changes at
// runtime is the search-enabled principal list, which should not require
// a restart to take effect.
package confwatch

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/illicitonion/timetravel/internal/config"
)

// Watcher watches a single config file and calls Reload with freshly
// parsed configuration whenever the file changes on disk.
type Watcher struct {
	fsw  *fsnotify.Watcher
	path string

	debounce time.Duration
	timer    *time.Timer
	timerMu  sync.Mutex

	errorHandler func(error)
	onReload     func(*config.Config)

	done    chan struct{}
	running bool
	runMu   sync.RWMutex
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long to wait after the last write event before
// re-parsing. Editors commonly emit several write events per save; without
// debouncing a single save could trigger several reloads.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithErrorHandler sets a callback for parse and filesystem errors. The
// watcher keeps running after an error; the last successfully parsed
// configuration stays in effect.
func WithErrorHandler(handler func(error)) Option {
	return func(w *Watcher) { w.errorHandler = handler }
}

// New creates a Watcher for the config file at path. onReload is called
// with every successfully parsed configuration, including once
// synchronously from Start so the caller doesn't need a separate initial
// config.Load.
func New(path string, onReload func(*config.Config), opts ...Option) (*Watcher, error) {
	if onReload == nil {
		return nil, fmt.Errorf("confwatch: onReload callback is required")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("confwatch: create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		fsw:          fsw,
		path:         path,
		debounce:     500 * time.Millisecond,
		onReload:     onReload,
		errorHandler: func(err error) { fmt.Fprintf(os.Stderr, "confwatch: %v\n", err) },
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Start performs an initial load, calling onReload synchronously, then
// begins watching the file for further changes in the background.
func (w *Watcher) Start() error {
	w.runMu.Lock()
	if w.running {
		w.runMu.Unlock()
		return fmt.Errorf("confwatch: already running")
	}
	w.running = true
	w.runMu.Unlock()

	cfg, err := config.Load(w.path)
	if err != nil {
		return fmt.Errorf("confwatch: initial load: %w", err)
	}
	w.onReload(cfg)

	if err := w.fsw.Add(w.path); err != nil {
		return fmt.Errorf("confwatch: watch %s: %w", w.path, err)
	}

	go w.eventLoop()
	return nil
}

// Stop stops watching and releases the fsnotify handle.
func (w *Watcher) Stop() error {
	w.runMu.Lock()
	if !w.running {
		w.runMu.Unlock()
		return nil
	}
	w.running = false
	w.runMu.Unlock()

	close(w.done)
	return w.fsw.Close()
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Editors often replace a file via rename-into-place rather
			// than writing it in place; re-add the watch so renames don't
			// silently stop delivering events.
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleReload()
			}
			if event.Op&fsnotify.Remove != 0 {
				_ = w.fsw.Add(w.path)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.errorHandler(fmt.Errorf("fsnotify error: %w", err))

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := config.Load(w.path)
	if err != nil {
		w.errorHandler(fmt.Errorf("reload %s: %w", w.path, err))
		return
	}
	w.onReload(cfg)
}
