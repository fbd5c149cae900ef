package shader

import (
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/gltf-frame/internal/logger"
)

// Watcher reports permutation files written to a directory, so a viewer
// can rebuild pipelines while the offline compiler produces them.
type Watcher struct {
	w       *fsnotify.Watcher
	ext     string
	changes chan string
	done    chan struct{}
}

// Watch starts watching dir for files ending in ext.
func Watch(dir, ext string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	w := &Watcher{
		w:       fw,
		ext:     ext,
		changes: make(chan string, 64),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer close(w.done)
	defer close(w.changes)
	for {
		select {
		case ev, ok := <-w.w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, w.ext) {
				continue
			}
			select {
			case w.changes <- name:
			default:
				// The consumer rebuilds everything on any change.
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			logger.Warn("shader watcher", zap.Error(err))
		}
	}
}

// Changes delivers the base names of written permutation files. It is
// closed by Close.
func (w *Watcher) Changes() <-chan string {
	return w.changes
}

// Drain returns whether any change arrived since the last call, without
// blocking.
func (w *Watcher) Drain() bool {
	changed := false
	for {
		select {
		case _, ok := <-w.changes:
			if !ok {
				return changed
			}
			changed = true
		default:
			return changed
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.w.Close()
	<-w.done
	return err
}
