package build

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"

	"github.com/chazu/obli/manifest"
)

var watchLog = commonlog.GetLogger("obli.watch")

// DefaultDebounce is the quiet period after the last change before a
// rebuild starts.
const DefaultDebounce = 100 * time.Millisecond

// Watcher rebuilds a project when its sources change. Bursts of events are
// collapsed into one rebuild.
type Watcher struct {
	watcher  *fsnotify.Watcher
	manifest *manifest.Manifest
	debounce *Debouncer

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for the project's source directories.
func NewWatcher(m *manifest.Manifest, interval time.Duration) (*Watcher, error) {
	if interval <= 0 {
		interval = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{watcher: w, manifest: m, debounce: NewDebouncer(interval)}, nil
}

// Watch blocks until ctx is cancelled, calling onChange after each burst
// of source changes. Errors from onChange are logged and watching goes on.
func (w *Watcher) Watch(ctx context.Context, onChange func() error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.Stop()
		w.watcher.Close()
	}()

	for _, dir := range w.manifest.SourceDirPaths() {
		if err := w.addDirectory(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	watchLog.Noticef("watching %s", strings.Join(w.manifest.Source.Dirs, ", "))

	for {
		select {
		case <-ctx.Done():
			watchLog.Info("stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			// New directories need their own watch.
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirectory(event.Name); err != nil {
						watchLog.Errorf("%s", err)
					}
					continue
				}
			}
			if !relevant(event) {
				continue
			}
			watchLog.Debugf("%s %s", event.Op, event.Name)
			w.debounce.Trigger(func() {
				if err := onChange(); err != nil {
					watchLog.Errorf("rebuild: %s", err)
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			watchLog.Errorf("%s", err)
		}
	}
}

func (w *Watcher) addDirectory(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		watchLog.Debugf("watching directory %s", path)
		return w.watcher.Add(path)
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	base := filepath.Base(event.Name)
	return filepath.Ext(base) == manifest.SourceExt && !strings.HasPrefix(base, ".")
}

// Debouncer runs the most recently triggered callback once no trigger has
// arrived for the interval. Callbacks never overlap: one triggered while
// another is running waits for it to finish.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool

	run sync.Mutex // held while a callback runs
}

// NewDebouncer creates a debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.run.Lock()
	defer d.run.Unlock()

	d.mu.Lock()
	cb := d.callback
	d.callback = nil
	stopped := d.stopped
	d.mu.Unlock()
	if cb != nil && !stopped {
		cb()
	}
}

// Stop cancels any pending callback and waits for a running one to return.
// Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
	d.mu.Unlock()

	d.run.Lock()
	d.run.Unlock()
}
