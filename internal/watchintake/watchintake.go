// Package watchintake watches the raw PDF intake tree and keeps the
// catalog in sync with it: new PDFs are registered as PENDING documents,
// and changes to PDFs whose document is already VERIFIED trigger a
// re-ingest. PENDING and REJECTED documents are never indexed from here;
// verification stays a human decision.
package watchintake

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/clausevault/clausevault/internal/catalog"
	"github.com/clausevault/clausevault/internal/docid"
	"github.com/clausevault/clausevault/internal/ingest"
	"github.com/clausevault/clausevault/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// Watcher watches the raw intake roots for PDF changes.
type Watcher struct {
	roots    []string
	catalog  *catalog.Catalog
	pipeline *ingest.Pipeline

	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a Watcher over roots. The pipeline registers new PDFs and
// re-ingests changed VERIFIED ones.
func New(roots []string, cat *catalog.Catalog, pipeline *ingest.Pipeline, opts ...Option) *Watcher {
	w := &Watcher{
		roots:       roots,
		catalog:     cat,
		pipeline:    pipeline,
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
	if w.logger != nil {
		w.logger.Debug("intake watcher starting", zap.Strings("roots", w.roots))
	}
	for _, root := range w.roots {
		if err := w.addRootLocked(root); err != nil {
			_ = w.watcher.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()
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
				w.logger.Debug("intake watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			// New company/product directory moved in: watch it and pick up
			// any PDFs already inside.
			w.watchSubtree(path)
			w.syncDirectory(ctx, path)
			return
		}
		if isPDF(path) {
			w.debouncePDF(ctx, path)
		}
	case ev.Op.Has(fsnotify.Remove):
		w.cancelDebounce(path)
		// A removed PDF does not delete anything: the document record and
		// any indexed chunks survive until an operator deletes them.
	}
}

// onPDF registers the PDF (idempotent), then re-ingests if the document is
// already VERIFIED. New PENDING documents are left for review.
func (w *Watcher) onPDF(ctx context.Context, path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	id, err := w.pipeline.RegisterPDF(ctx, absPath)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("intake: register failed", zap.String("path", absPath), zap.Error(err))
		}
		return
	}
	doc, err := w.catalog.GetDocument(ctx, id)
	if err != nil {
		return
	}
	if doc.VerificationStatus != models.StatusVerified {
		if w.logger != nil {
			w.logger.Debug("intake: document awaiting review",
				zap.String("document_id", id), zap.String("status", string(doc.VerificationStatus)))
		}
		return
	}
	if err := w.pipeline.IngestDocument(ctx, id); err != nil {
		if w.logger != nil {
			w.logger.Warn("intake: re-ingest failed", zap.String("document_id", id), zap.Error(err))
		}
		return
	}
	if w.logger != nil {
		w.logger.Debug("intake: verified document re-ingested", zap.String("document_id", id))
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

func (w *Watcher) debouncePDF(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	t := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		w.mu.Unlock()
		w.onPDF(ctx, path)
	})
	w.debounceMap[path] = t
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(root, 0755); err != nil {
				return err
			}
		} else {
			return err
		}
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) watchSubtree(dir string) {
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return
	}
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if addErr := watcher.Add(path); addErr != nil && w.logger != nil {
				w.logger.Debug("intake: failed to watch directory", zap.String("path", path), zap.Error(addErr))
			}
		}
		return nil
	})
}

func (w *Watcher) syncDirectory(ctx context.Context, root string) {
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if isPDF(path) {
			w.onPDF(ctx, path)
		}
		return nil
	})
}

// SyncExisting walks every root once and processes PDFs already present
// when the watcher started: registration for new files, re-ingest for
// every file whose document is already VERIFIED (changed or not).
func (w *Watcher) SyncExisting(ctx context.Context) {
	w.mu.Lock()
	roots := append([]string(nil), w.roots...)
	w.mu.Unlock()
	for _, root := range roots {
		w.syncDirectory(ctx, root)
	}
}

// DocumentIDForPath returns the stable document ID a path resolves to,
// mirroring what registration would assign.
func DocumentIDForPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return docid.FromPath(abs)
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
