// Package watcher registers documents dropped into case upload directories
// outside the API, so the parse stage sees them like regular uploads.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nyaya/caseflow/internal/models"
	"github.com/nyaya/caseflow/internal/storage"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches <data_dir>/<case_id>/uploads/ directories and records
// files named after a document type (fir.pdf, statement.pdf, ...) as
// out-of-band uploads. New case directories are picked up as they appear.
type Watcher struct {
	layout      *storage.Layout
	store       storage.Storage
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// NewWatcher creates a watcher over the layout's data root.
func NewWatcher(layout *storage.Layout, store storage.Storage, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		layout:      layout,
		store:       store,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It runs until ctx is cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.started = true
	root := w.layout.Root()
	if err := os.MkdirAll(root, 0755); err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(root); err != nil {
		w.mu.Unlock()
		return err
	}
	// Existing case directories were created before the watcher started.
	entries, _ := os.ReadDir(root)
	for _, e := range entries {
		if e.IsDir() {
			w.addCaseDirLocked(filepath.Join(root, e.Name()))
		}
	}
	w.mu.Unlock()

	if w.logger != nil {
		w.logger.Debug("upload watcher started", zap.String("root", root))
	}
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if err != nil && w.logger != nil {
				w.logger.Debug("upload watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Op != fsnotify.Create && ev.Op != fsnotify.Write {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		w.mu.Lock()
		w.addCaseDirLocked(ev.Name)
		w.mu.Unlock()
		return
	}
	caseID, docType, ok := w.classify(ev.Name)
	if !ok {
		return
	}
	w.debounceRegister(ctx, ev.Name, caseID, docType)
}

// addCaseDirLocked watches a case directory and its uploads subdirectory.
// The uploads directory may not exist yet; its later creation arrives as a
// create event on the case directory watch.
func (w *Watcher) addCaseDirLocked(dir string) {
	if w.watcher == nil {
		return
	}
	_ = w.watcher.Add(dir)
	uploads := filepath.Join(dir, "uploads")
	if _, err := os.Stat(uploads); err == nil {
		_ = w.watcher.Add(uploads)
	}
}

// classify maps an event path to (caseID, documentType). Only files directly
// inside an uploads directory and named after a document type qualify.
func (w *Watcher) classify(path string) (string, models.DocumentType, bool) {
	rel, err := filepath.Rel(w.layout.Root(), path)
	if err != nil {
		return "", "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 3 || parts[1] != "uploads" {
		return "", "", false
	}
	for _, t := range models.AllDocumentTypes {
		if parts[2] == t.UploadName() {
			return parts[0], t, true
		}
	}
	return "", "", false
}

func (w *Watcher) debounceRegister(ctx context.Context, path, caseID string, docType models.DocumentType) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.register(ctx, path, caseID, docType)
	})
	w.debounceMap[path] = t
}

// register records the dropped file as an upload unless one of the same type
// is already registered for the case.
func (w *Watcher) register(ctx context.Context, path, caseID string, docType models.DocumentType) {
	if _, err := w.store.GetCase(ctx, caseID); err != nil {
		if w.logger != nil {
			w.logger.Debug("ignoring file for unknown case", zap.String("path", path), zap.Error(err))
		}
		return
	}
	existing, err := w.store.ListUploads(ctx, caseID)
	if err != nil {
		return
	}
	for _, u := range existing {
		if u.Type == docType {
			return
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	upload := &models.Upload{
		ID:        uuid.NewString(),
		CaseID:    caseID,
		Type:      docType,
		Filename:  docType.UploadName(),
		Size:      info.Size(),
		Source:    "watch",
		CreatedAt: time.Now().UTC(),
	}
	if err := w.store.CreateUpload(ctx, upload); err != nil {
		if w.logger != nil {
			w.logger.Warn("failed to register watched upload", zap.String("path", path), zap.Error(err))
		}
		return
	}
	if w.logger != nil {
		w.logger.Info("registered out-of-band upload",
			zap.String("case_id", caseID),
			zap.String("type", string(docType)))
	}
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
