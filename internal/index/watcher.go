package index

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hyprutils/hyprlauncher/internal/desktop"
	"github.com/hyprutils/hyprlauncher/internal/logging"
)

var watchLog = logging.ForComponent(logging.CompWatch)

// DefaultDebounce is how long the watcher waits for activity to settle.
const DefaultDebounce = 500 * time.Millisecond

// DirWatcher reports descriptor changes below a set of roots. Bursts of
// events are coalesced into one signal on Changes.
type DirWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	changes  chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	timer   *time.Timer
	roots   map[string]bool // roots being watched or awaited
	pending map[string]bool // roots that did not exist yet
	watched map[string]bool
}

// NewDirWatcher creates a watcher for dirs. Roots that do not exist yet are
// awaited by watching their parent directory.
func NewDirWatcher(dirs []Dir, debounce time.Duration) (*DirWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &DirWatcher{
		watcher:  fw,
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
	w.Reset(dirs)
	return w, nil
}

// Start begins delivering events.
func (w *DirWatcher) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Changes receives one value per settled burst of descriptor activity.
func (w *DirWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Reset replaces the watched roots.
func (w *DirWatcher) Reset(dirs []Dir) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for p := range w.watched {
		_ = w.watcher.Remove(p)
	}
	w.roots = make(map[string]bool, len(dirs))
	w.pending = make(map[string]bool)
	w.watched = make(map[string]bool)

	for _, d := range dirs {
		w.roots[d.Path] = true
		if _, err := os.Stat(d.Path); err != nil {
			w.pending[d.Path] = true
			w.addLocked(filepath.Dir(d.Path))
			continue
		}
		w.addTreeLocked(d.Path)
	}
	watchLog.Debug("watch_reset",
		slog.Int("roots", len(dirs)),
		slog.Int("pending", len(w.pending)),
		slog.Int("watched", len(w.watched)))
}

// Close stops the watcher. It is safe to call more than once.
func (w *DirWatcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopCh)
		err = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}

func (w *DirWatcher) addLocked(dir string) {
	if w.watched[dir] {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		watchLog.Debug("watch_add_failed", slog.String("dir", dir), slog.String("error", err.Error()))
		return
	}
	w.watched[dir] = true
}

func (w *DirWatcher) addTreeLocked(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			w.addLocked(path)
		}
		return nil
	})
}

func (w *DirWatcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.handle(event) {
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			watchLog.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// handle updates watches for event and reports whether it affects the index.
func (w *DirWatcher) handle(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	name := filepath.Clean(event.Name)

	if w.pending[name] {
		if event.Op&fsnotify.Create == 0 {
			return false
		}
		delete(w.pending, name)
		w.addTreeLocked(name)
		return true
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(name); err == nil && info.IsDir() && w.underRootLocked(name) {
			w.addTreeLocked(name)
			return true
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.watched[name] {
		delete(w.watched, name)
		if w.roots[name] {
			w.pending[name] = true
			w.addLocked(filepath.Dir(name))
		}
		return true
	}

	return desktop.IsDescriptor(name) && w.underRootLocked(name)
}

func (w *DirWatcher) underRootLocked(path string) bool {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if w.roots[dir] || w.roots[path] {
			return true
		}
		if next := filepath.Dir(dir); next == dir {
			return false
		}
	}
}

func (w *DirWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.signal)
}

func (w *DirWatcher) signal() {
	select {
	case <-w.stopCh:
		return
	default:
	}
	select {
	case w.changes <- struct{}{}:
		watchLog.Debug("descriptors_changed")
	default:
		// A signal is already queued.
	}
}
