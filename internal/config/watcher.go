package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the config file for changes so a long-running server
// can pick up edits without a restart.
type Watcher struct {
	path      string
	watcher   *fsnotify.Watcher
	onChange  func()
	debounce  time.Duration
	stopCh    chan struct{}
	mu        sync.Mutex
	lastEvent time.Time
}

// NewWatcher creates a config file watcher. onChange runs after edits
// settle; the callback should reload via Load itself.
func NewWatcher(path string, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     path,
		watcher:  fsWatcher,
		onChange: onChange,
		debounce: 200 * time.Millisecond, // Debounce editor write bursts
		stopCh:   make(chan struct{}),
	}

	return w, nil
}

// Start begins watching. A missing config file is not an error: the
// parent directory is watched instead so creation is picked up too.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.path); err != nil {
		// Fall back to the directory; events for the file still arrive.
		if dirErr := w.watcher.Add(filepath.Dir(w.path)); dirErr != nil {
			return err
		}
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	close(w.stopCh)
	return w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.stopCh:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			// Writes and creates both matter: editors often replace the
			// file wholesale on save.
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.mu.Lock()
			w.lastEvent = time.Now()
			w.mu.Unlock()

			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			debounceTimer = time.AfterFunc(w.debounce, func() {
				w.mu.Lock()
				elapsed := time.Since(w.lastEvent)
				w.mu.Unlock()

				if elapsed >= w.debounce {
					w.onChange()
				}
			})

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Keep watching through transient errors.
		}
	}
}

// SetDebounce sets the debounce duration
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}
