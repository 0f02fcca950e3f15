package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"GhibliScanner/internal/infrastructure/parser"
	"GhibliScanner/internal/ports"
	"GhibliScanner/internal/scanner"
)

// PageLoader loads a live document and plain snapshots of the same page.
type PageLoader interface {
	Load(ctx context.Context, pageURL string) (*parser.Document, error)
	Snapshot(ctx context.Context, pageURL string) (*goquery.Document, error)
}

// StatusSyncer pulls the persisted enabled flag and notifies listeners on change.
type StatusSyncer interface {
	Sync(ctx context.Context) error
}

// WatcherDeps wires the watcher.
type WatcherDeps struct {
	Driver  ports.Scheduler
	Loader  PageLoader
	Scanner *scanner.Scanner
	Syncer  StatusSyncer
	Logger  *slog.Logger
}

// Watcher keeps one page under observation: new images found on re-fetch are
// inserted into the live document so the scanner's watch picks them up.
type Watcher struct {
	driver  ports.Scheduler
	loader  PageLoader
	scanner *scanner.Scanner
	syncer  StatusSyncer
	logger  *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	pageURL string
	doc     *parser.Document
	stop    func()
	known   map[string]struct{}
}

var _ ports.StatusListener = (*Watcher)(nil)

// NewWatcher returns a helper to start/stop watching a page.
func NewWatcher(deps WatcherDeps) *Watcher {
	return &Watcher{
		driver:  deps.Driver,
		loader:  deps.Loader,
		scanner: deps.Scanner,
		syncer:  deps.Syncer,
		logger:  deps.Logger,
		known:   map[string]struct{}{},
	}
}

// Start loads the page, scans it, installs the watch and registers the refresh job.
func (w *Watcher) Start(ctx context.Context, pageURL string) error {
	if w.loader == nil || w.scanner == nil {
		return fmt.Errorf("watcher is not configured")
	}

	doc, err := w.loader.Load(ctx, pageURL)
	if err != nil {
		return fmt.Errorf("load %s: %w", pageURL, err)
	}

	w.mu.Lock()
	w.ctx = ctx
	w.pageURL = pageURL
	w.doc = doc
	w.rememberLocked(doc, doc.Root().Find("img"))
	w.installLocked()
	w.mu.Unlock()

	found := w.scanner.Scan(ctx, doc)
	w.debug("initial scan", "page", pageURL, "dispatched", found)

	if w.driver == nil {
		return nil
	}
	return w.driver.Start(ctx, w.refresh)
}

// Stop halts the refresh job, disconnects the watch and waits for in-flight candidates.
func (w *Watcher) Stop(ctx context.Context) error {
	var err error
	if w.driver != nil {
		err = w.driver.Stop(ctx)
	}

	w.mu.Lock()
	if w.stop != nil {
		w.stop()
		w.stop = nil
	}
	w.mu.Unlock()

	if w.scanner != nil {
		w.scanner.Wait()
	}
	return err
}

// OnStatusChange re-enables scanning with an explicit re-scan, or only flips the flag off.
func (w *Watcher) OnStatusChange(enabled bool) {
	w.scanner.SetEnabled(enabled)
	if !enabled {
		w.debug("scanning disabled")
		return
	}

	w.mu.Lock()
	doc, ctx := w.doc, w.ctx
	if doc != nil {
		w.installLocked()
	}
	w.mu.Unlock()

	if doc == nil {
		return
	}
	found := w.scanner.Scan(ctx, doc)
	w.debug("rescan after enable", "dispatched", found)
}

// Refresh runs one refresh cycle immediately.
func (w *Watcher) Refresh(ctx context.Context) (int, error) {
	if w.syncer != nil {
		if err := w.syncer.Sync(ctx); err != nil {
			w.debug("sync status", "error", err)
		}
	}

	w.mu.Lock()
	doc, pageURL := w.doc, w.pageURL
	w.mu.Unlock()
	if doc == nil {
		return 0, nil
	}

	snapshot, err := w.loader.Snapshot(ctx, pageURL)
	if err != nil {
		return 0, fmt.Errorf("refresh %s: %w", pageURL, err)
	}

	w.mu.Lock()
	fresh := snapshot.Find("img").FilterFunction(func(_ int, img *goquery.Selection) bool {
		src := doc.Resolve(img.AttrOr("src", ""))
		if src == "" {
			return false
		}
		_, ok := w.known[src]
		return !ok
	})
	w.rememberLocked(doc, fresh)
	w.mu.Unlock()

	inserted := 0
	var insertErr error
	fresh.Each(func(_ int, img *goquery.Selection) {
		markup, err := goquery.OuterHtml(img)
		if err != nil {
			insertErr = err
			return
		}
		if err := doc.AppendHTML("", markup); err != nil {
			insertErr = err
			return
		}
		inserted++
	})
	if insertErr != nil {
		return inserted, fmt.Errorf("insert images: %w", insertErr)
	}
	return inserted, nil
}

func (w *Watcher) refresh(trigger time.Time) {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()

	inserted, err := w.Refresh(ctx)
	if err != nil {
		w.warn("refresh failed", "error", err)
		return
	}
	if inserted > 0 {
		w.debug("new images inserted", "count", inserted, "at", trigger.Format(time.RFC3339))
	}
}

func (w *Watcher) installLocked() {
	if w.stop != nil {
		return
	}
	if stop, ok := w.scanner.Watch(w.ctx, w.doc); ok {
		w.stop = stop
	}
}

func (w *Watcher) rememberLocked(doc *parser.Document, imgs *goquery.Selection) {
	imgs.Each(func(_ int, img *goquery.Selection) {
		if src := doc.Resolve(img.AttrOr("src", "")); src != "" {
			w.known[src] = struct{}{}
		}
	})
}

func (w *Watcher) debug(msg string, args ...interface{}) {
	if w.logger == nil {
		return
	}
	w.logger.Debug(msg, args...)
}

func (w *Watcher) warn(msg string, args ...interface{}) {
	if w.logger == nil {
		return
	}
	w.logger.Warn(msg, args...)
}
