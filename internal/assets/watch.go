package assets

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports file-backed assets whose file changed on disk. Each report
// has already been dropped from the manager's cache, so the next Load reads
// the new contents.
type Watcher struct {
	manager *Manager
	fsw     *fsnotify.Watcher
	changes chan string
	done    chan struct{}
	wg      sync.WaitGroup

	mu    sync.Mutex
	files map[string][]string // cleaned path -> asset names
	dirs  map[string]bool
}

// NewWatcher starts watching for m. Call Close to stop.
func NewWatcher(m *Manager) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{
		manager: m,
		fsw:     fsw,
		changes: make(chan string, 16),
		done:    make(chan struct{}),
		files:   make(map[string][]string),
		dirs:    make(map[string]bool),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Watch starts tracking the file behind name. Primitives have no file and
// are ignored.
func (w *Watcher) Watch(name string) error {
	res, err := w.manager.Resolve(name)
	if err != nil {
		return err
	}
	if res.Path == "" {
		return nil
	}

	path, err := filepath.Abs(res.Path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	// Editors often replace files by rename, which drops a watch on the
	// file itself. Watching the directory survives that.
	if !w.dirs[dir] {
		if err := w.fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	for _, n := range w.files[path] {
		if n == name {
			return nil
		}
	}
	w.files[path] = append(w.files[path], name)
	return nil
}

// Changes delivers the names of assets whose files changed.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Close stops the watcher and closes the Changes channel.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	close(w.changes)
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.changed(event.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.manager.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) changed(file string) {
	path, err := filepath.Abs(file)
	if err != nil {
		return
	}

	w.mu.Lock()
	names := append([]string(nil), w.files[path]...)
	w.mu.Unlock()
	if len(names) == 0 {
		return
	}

	w.manager.Invalidate(path)
	for _, name := range names {
		w.manager.log.Info("asset changed", zap.String("name", name), zap.String("path", path))
		select {
		case w.changes <- name:
		case <-w.done:
			return
		}
	}
}
