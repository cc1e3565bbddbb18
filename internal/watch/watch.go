// Package watch re-runs builds when the configuration or a metadata input changes.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/mrefbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/mrefbuilder/internal/logfields"
	"git.home.luguber.info/inful/mrefbuilder/internal/util/sets"
)

// DefaultDebounce is the quiet period after the last change before a build starts.
const DefaultDebounce = 500 * time.Millisecond

// Handler runs a build after a change. It returns the paths to watch from then on;
// nil keeps the current set.
type Handler func(ctx context.Context) ([]string, error)

// Watcher watches files and directories. A watched file matches events for itself,
// a watched directory matches events for the files directly inside it.
type Watcher struct {
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger
	ready    chan struct{}

	files sets.Set[string]
	dirs  sets.Set[string]
}

// New returns a watcher calling handler after changes.
func New(handler Handler) *Watcher {
	return &Watcher{
		handler:  handler,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		ready:    make(chan struct{}),
	}
}

// WithDebounce sets the quiet period.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	if d > 0 {
		w.debounce = d
	}
	return w
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	if logger != nil {
		w.logger = logger
	}
	return w
}

// Ready is closed once the initial watches are in place.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches paths until ctx is cancelled. Handler errors are logged and watching
// continues. A Watcher runs once.
func (w *Watcher) Run(ctx context.Context, paths []string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryRuntime, "failed to create file watcher").Build()
	}
	defer func() { _ = fw.Close() }()

	w.setTargets(fw, paths)
	close(w.ready)
	w.logger.Info("Watching for changes", logfields.Count(len(w.files)+len(w.dirs)))

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || !w.matches(event.Name) {
				continue
			}
			w.logger.Debug("Change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))

		case <-fire:
			fire = nil
			next, err := w.handler(ctx)
			if err != nil {
				w.logger.Error("Rebuild failed", logfields.Error(err))
			}
			if next != nil {
				w.setTargets(fw, next)
			}
		}
	}
}

func (w *Watcher) matches(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return w.files.Has(abs) || w.dirs.Has(filepath.Dir(abs))
}

// setTargets replaces the watched set. Directories are watched for files, so a file
// that is replaced by a rename is still seen.
func (w *Watcher) setTargets(fw *fsnotify.Watcher, paths []string) {
	w.files, w.dirs = sets.New[string](), sets.New[string]()
	needed := sets.New[string]()
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			w.logger.Warn("Cannot watch path", logfields.Path(p), logfields.Error(err))
			continue
		}
		if info, err := os.Stat(abs); err == nil && info.IsDir() {
			w.dirs.Add(abs)
			needed.Add(abs)
			continue
		}
		w.files.Add(abs)
		needed.Add(filepath.Dir(abs))
	}

	for _, dir := range fw.WatchList() {
		if !needed.Has(dir) {
			_ = fw.Remove(dir)
		}
	}
	watched := sets.New(fw.WatchList()...)
	for dir := range needed {
		if watched.Has(dir) {
			continue
		}
		if err := fw.Add(dir); err != nil {
			w.logger.Warn("Cannot watch directory", logfields.Path(dir), logfields.Error(err))
		}
	}
}
