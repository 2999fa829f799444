package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports edits of the data file made by anything other than its FileStorage.
type Watcher struct {
	storage *FileStorage
	target  string
	watcher *fsnotify.Watcher
}

// NewWatcher watches the directory of the storage's data file. The directory
// is watched rather than the file because Save replaces the file by rename.
func NewWatcher(s *FileStorage) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("storage: create watcher: %w", err)
	}

	target, err := filepath.Abs(s.path)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("storage: resolve %s: %w", s.path, err)
	}
	if err := w.Add(filepath.Dir(target)); err != nil {
		w.Close()
		return nil, fmt.Errorf("storage: watch %s: %w", filepath.Dir(target), err)
	}

	return &Watcher{storage: s, target: target, watcher: w}, nil
}

// Run processes file events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.storage.log.Sugar().Errorf("Data file watcher error: %s", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != w.target {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if _, err := os.Stat(w.target); errors.Is(err, fs.ErrNotExist) {
			w.storage.metrics.ObserveDataFileEvent("remove")
			w.storage.log.Info("data file removed outside the service", zap.String("path", w.target))
		}
	case event.Has(fsnotify.Write), event.Has(fsnotify.Create):
		data, err := os.ReadFile(w.target)
		if err != nil || w.storage.wroteLast(data) {
			return
		}
		w.storage.metrics.ObserveDataFileEvent("write")
		w.storage.log.Info("data file changed outside the service", zap.String("path", w.target))
	}
}
