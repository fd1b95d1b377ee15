package lines

import (
	"context"
	"io"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Watcher reports changes of a single file
type Watcher struct {
	name    string
	watcher *fsnotify.Watcher
}

func NewWatcher(name string) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	if err := w.Add(name); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "Could not watch %v", name)
	}
	return &Watcher{name: name, watcher: w}, nil
}

// Wait blocks until the file is written to. It returns io.EOF when the file is removed or renamed.
func (w *Watcher) Wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return io.EOF
			}
			log.Tracef("%v: %v", w, ev)
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				return io.EOF
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				return nil
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return io.EOF
			}
			return errors.WithStack(err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) String() string {
	return "watcher(" + w.name + ")"
}
