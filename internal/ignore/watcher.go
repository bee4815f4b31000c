package ignore

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher invokes a callback when a project's ignore files change, so a
// long-lived process can rebuild its engine instead of serving stale rules.
// It watches the root directory rather than the files themselves: the
// files may not exist yet, and editors replace them on save.
type Watcher struct {
	root     string
	names    map[string]bool
	onChange func()

	watcher  *fsnotify.Watcher
	stopChan chan struct{}
	wg       sync.WaitGroup

	// rapid successive writes collapse into one callback
	debounce     time.Duration
	pendingTimer *time.Timer
	timerMu      sync.Mutex
}

// NewWatcher prepares a watcher for the given root. extra basenames from
// configuration are watched alongside the standard probe list.
func NewWatcher(root string, extra []string, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(ProbeFiles)+len(extra))
	for _, n := range ProbeFiles {
		names[n] = true
	}
	for _, n := range extra {
		names[n] = true
	}

	return &Watcher{
		root:     root,
		names:    names,
		onChange: onChange,
		watcher:  fsWatcher,
		stopChan: make(chan struct{}),
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching the root directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.root); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.run()

	log.Info("watching %s for ignore-file changes", w.root)
	return nil
}

// Stop halts the watcher and waits for its goroutine to exit.
func (w *Watcher) Stop() error {
	close(w.stopChan)
	w.wg.Wait()

	w.timerMu.Lock()
	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.timerMu.Unlock()

	return w.watcher.Close()
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error: %v", err)

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.names[filepath.Base(event.Name)] {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	log.Debug("ignore file changed: %s (%s)", filepath.Base(event.Name), event.Op)
	w.scheduleChange()
}

func (w *Watcher) scheduleChange() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.pendingTimer != nil {
		w.pendingTimer.Stop()
	}
	w.pendingTimer = time.AfterFunc(w.debounce, w.onChange)
}
