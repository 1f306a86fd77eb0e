package scrap

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// Watcher observes a file-backed scrap directory and notifies callbacks when
// another editor seat changes an archive. Callbacks receive the affected file
// key, so a session can refresh its recycle-bin view without polling.
type Watcher struct {
	store    *FileStore
	log      *log.Logger
	mu       sync.Mutex
	onChange []func(key string)
}

// NewWatcher creates a watcher over the store's directory.
// A nil logger falls back to the default logger.
func NewWatcher(store *FileStore, logger *log.Logger) *Watcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Watcher{store: store, log: logger}
}

// OnChange registers a callback invoked with the file key of each changed
// archive. Callbacks run on the watcher goroutine and must not block.
func (w *Watcher) OnChange(fn func(key string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = append(w.onChange, fn)
}

// Watch starts a background goroutine that reports archive changes.
// Call the returned stop function to clean up.
func (w *Watcher) Watch() (stop func(), err error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("scrap watcher: %w", err)
	}
	if err := fw.Add(w.store.Dir()); err != nil {
		fw.Close()
		return nil, fmt.Errorf("scrap watcher add %s: %w", w.store.Dir(), err)
	}

	done := make(chan struct{})
	go func() {
		defer fw.Close()
		for {
			select {
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
					continue
				}
				name := filepath.Base(ev.Name)
				if !strings.HasSuffix(name, ".json") {
					continue
				}
				key := strings.TrimSuffix(name, ".json")
				w.mu.Lock()
				callbacks := make([]func(string), len(w.onChange))
				copy(callbacks, w.onChange)
				w.mu.Unlock()
				for _, fn := range callbacks {
					fn(key)
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.Warn("scrap watcher error", "err", err)
			case <-done:
				return
			}
		}
	}()

	return func() { close(done) }, nil
}
