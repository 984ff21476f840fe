package file

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultDebounce coalesces the burst of events one editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Refresher reloads a cached registry.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// CatalogWatcher re-seeds the registry store whenever the catalog file
// changes and then refreshes the registry.
type CatalogWatcher struct {
	path      string
	store     driven.RegistryStore
	registry  Refresher
	debounce  time.Duration
	onApplied func(SeedResult, error)
}

// WatcherOption configures a CatalogWatcher.
type WatcherOption func(*CatalogWatcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *CatalogWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithOnApplied registers a callback run after each reload attempt.
func WithOnApplied(fn func(SeedResult, error)) WatcherOption {
	return func(w *CatalogWatcher) {
		w.onApplied = fn
	}
}

// NewCatalogWatcher creates a watcher for the catalog at path.
func NewCatalogWatcher(path string, store driven.RegistryStore, registry Refresher,
	opts ...WatcherOption) *CatalogWatcher {
	w := &CatalogWatcher{
		path:     filepath.Clean(path),
		store:    store,
		registry: registry,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. The parent directory is watched
// rather than the file so editors that save by rename are still seen.
// A catalog that fails to load leaves the store untouched.
func (w *CatalogWatcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("catalog watcher: watch %s: %w", filepath.Dir(w.path), err)
	}
	logger.Debug("watching provider catalog %s", w.path)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("catalog watcher: %v", err)
		case <-timer.C:
			res, err := w.apply(ctx)
			if w.onApplied != nil {
				w.onApplied(res, err)
			}
		}
	}
}

func (w *CatalogWatcher) apply(ctx context.Context) (SeedResult, error) {
	c, err := LoadCatalog(w.path)
	if err != nil {
		logger.Warn("catalog watcher: keeping current registry: %v", err)
		return SeedResult{}, err
	}
	res, err := c.Seed(ctx, w.store)
	if err != nil {
		logger.Warn("catalog watcher: %v", err)
		return res, err
	}
	if err := w.registry.Refresh(ctx); err != nil {
		logger.Warn("catalog watcher: refresh registry: %v", err)
		return res, err
	}
	logger.Info("provider catalog reloaded: %d generation, %d embedding providers",
		res.Providers, res.EmbeddingProviders)
	return res, nil
}
