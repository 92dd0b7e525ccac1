package template

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// rebuildQuiet is how long the watcher waits after the last filesystem
// event before firing a rebuild. Content drops touch many files at once.
const rebuildQuiet = 500 * time.Millisecond

// Watcher watches the reference-image directories and invokes a callback
// when their contents change, so the library can be rebuilt.
type Watcher struct {
	fsw  *fsnotify.Watcher
	log  *slog.Logger
	done chan struct{}
}

// Watch starts watching the given directories (recursively) and calls
// onChange after changes settle. Stop the watcher with Close.
func Watch(dirs []string, onChange func(), log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:  fsw,
		log:  log.With("component", "template-watch"),
		done: make(chan struct{}),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		// fsnotify does not recurse; add every subdirectory.
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if addErr := fsw.Add(path); addErr != nil {
				w.log.Warn("cannot watch directory", "path", path, "error", addErr)
			}
			return nil
		})
	}

	go w.loop(onChange)
	return w, nil
}

// Close stops the watcher and blocks until the event loop exits.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}

func (w *Watcher) loop(onChange func()) {
	defer close(w.done)

	var quiet *time.Timer
	var quietC <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if quiet == nil {
				quiet = time.NewTimer(rebuildQuiet)
				quietC = quiet.C
			} else {
				quiet.Reset(rebuildQuiet)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		case <-quietC:
			w.log.Info("reference images changed, rebuilding templates")
			onChange()
			quietC = nil
			quiet = nil
		}
	}
}
