package layout

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/hubdeck/hubdeck/internal/logger"
)

// Watcher reports when a layout file changes on disk so the dashboard
// can recompile it without restarting. Parent directories are watched
// rather than the files themselves; editors that replace a file on
// save would otherwise detach the watch.
type Watcher struct {
	fsw       *fsnotify.Watcher
	files     map[string]struct{}
	events    chan string
	done      chan struct{}
	closeOnce sync.Once
	log       logger.Logger
}

// NewWatcher watches the given layout files. A path whose directory
// cannot be watched is skipped with a warning; the watcher still
// serves the rest.
func NewWatcher(paths []string, log logger.Logger) (*Watcher, error) {
	if log == nil {
		log = logger.NewNullLogger()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:    fsw,
		files:  make(map[string]struct{}, len(paths)),
		events: make(chan string, 4),
		done:   make(chan struct{}),
		log:    log,
	}
	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			log.WithError(err).WithField("dir", dir).Warn("Cannot watch layout directory")
		}
	}
	go w.run()
	return w, nil
}

// Events delivers the path of each changed layout file. Slow consumers
// lose hints rather than blocking the watch loop; a lost hint only
// delays the reload until the next change.
func (w *Watcher) Events() <-chan string { return w.events }

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil {
				continue
			}
			if _, watched := w.files[abs]; !watched {
				continue
			}
			select {
			case w.events <- abs:
			default:
				w.log.WithField("path", abs).Debug("Dropping layout reload hint, channel full")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("Layout watcher error")
		}
	}
}

// Close stops the watch loop. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
	})
	return err
}
