// Package watcher monitors a drop directory and hands newly settled PDF
// files to an upload callback.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// UploadFunc receives batches of file paths ready to upload.
type UploadFunc func(ctx context.Context, paths []string) error

// Watcher observes one directory for new documents.
type Watcher struct {
	dir      string
	debounce time.Duration
	upload   UploadFunc
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time
}

// New creates a watcher over dir. debounce is how long a file must sit
// quiet before it is considered fully written; zero picks a default.
func New(dir string, debounce time.Duration, upload UploadFunc, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		upload:   upload,
		logger:   logger,
		pending:  make(map[string]time.Time),
	}
}

// Run watches until ctx is cancelled. Files already present in the
// directory are uploaded once at startup; afterwards create and write
// events mark files pending, and a file whose events have settled for the
// debounce window gets uploaded.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return err
	}

	if err := w.scanExisting(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !isPDF(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				w.mu.Lock()
				w.pending[event.Name] = time.Now()
				w.mu.Unlock()
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.mu.Lock()
				delete(w.pending, event.Name)
				w.mu.Unlock()
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case <-ticker.C:
			w.flushSettled(ctx)
		}
	}
}

// scanExisting uploads PDFs already sitting in the directory.
func (w *Watcher) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !isPDF(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(w.dir, entry.Name()))
	}
	if len(paths) == 0 {
		return nil
	}
	w.logger.Info("uploading existing documents", zap.Int("count", len(paths)))
	if err := w.upload(ctx, paths); err != nil {
		w.logger.Warn("initial upload failed", zap.Error(err))
	}
	return nil
}

// flushSettled uploads every pending file whose last event is older than
// the debounce window. Failed batches go back to pending for the next tick.
func (w *Watcher) flushSettled(ctx context.Context) {
	cutoff := time.Now().Add(-w.debounce)

	w.mu.Lock()
	var ready []string
	for path, last := range w.pending {
		if last.Before(cutoff) {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(ready) == 0 {
		return
	}
	w.logger.Info("uploading new documents", zap.Strings("files", ready))
	if err := w.upload(ctx, ready); err != nil {
		w.logger.Warn("upload failed, will retry", zap.Error(err))
		w.mu.Lock()
		for _, path := range ready {
			w.pending[path] = time.Now()
		}
		w.mu.Unlock()
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
