package framegraph

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/framegraph/graph"
	"github.com/gogpu/framegraph/internal/logging"
)

// ConfigWatcher reports edits of a graph config file. It watches the
// directory rather than the file, so editors that save by rename are
// seen too. Graphs must not change mid-frame: the render loop calls Poll
// between frames and rebuilds with Session.ReplaceGraph.
type ConfigWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	changed chan struct{}
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	mu  sync.Mutex
	err error
}

// WatchConfig starts watching the config file at path.
func WatchConfig(path string) (*ConfigWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch config %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch config %s: %w", path, err)
	}
	cw := &ConfigWatcher{
		path:    abs,
		watcher: w,
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	cw.wg.Add(1)
	go cw.loop()
	return cw, nil
}

func (cw *ConfigWatcher) loop() {
	defer cw.wg.Done()
	for {
		select {
		case <-cw.done:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Coalesce: one pending notification is enough.
			select {
			case cw.changed <- struct{}{}:
			default:
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			logging.L().Warn("framegraph: config watch", "path", cw.path, "err", err)
			cw.mu.Lock()
			cw.err = err
			cw.mu.Unlock()
		}
	}
}

// Changed is signaled after the file is written, created or renamed.
func (cw *ConfigWatcher) Changed() <-chan struct{} { return cw.changed }

// Poll loads the config if the file changed since the last Poll. It never
// blocks. ok is false when there was no change.
func (cw *ConfigWatcher) Poll() (cfg *graph.Config, ok bool, err error) {
	select {
	case <-cw.changed:
	default:
		cw.mu.Lock()
		err, cw.err = cw.err, nil
		cw.mu.Unlock()
		return nil, false, err
	}
	cfg, err = graph.LoadConfig(cw.path)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// Close stops watching. Later calls return nil.
func (cw *ConfigWatcher) Close() error {
	var err error
	cw.once.Do(func() {
		close(cw.done)
		err = cw.watcher.Close()
		cw.wg.Wait()
	})
	return err
}
