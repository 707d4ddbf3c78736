package harness

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 500 * time.Millisecond

// binaryWatcher signals when a file is rewritten. It watches the containing
// directory since builds usually replace the file rather than write to it.
type binaryWatcher struct {
	log       log.Logger
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	Changes   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newBinaryWatcher(logger log.Logger, path string, debounce time.Duration) (*binaryWatcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, err
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	w := &binaryWatcher{
		log:       logger,
		fsWatcher: fsWatcher,
		path:      filepath.Clean(path),
		debounce:  debounce,
		Changes:   make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *binaryWatcher) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.fsWatcher.Close()
	})
}

func (w *binaryWatcher) loop() {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.log.Debug("Test binary changed", "path", event.Name, "op", event.Op)

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.notify)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("Watcher error", "err", err)
		}
	}
}

// notify never blocks; one pending change is enough to trigger a run
func (w *binaryWatcher) notify() {
	select {
	case w.Changes <- struct{}{}:
	default:
	}
}
