package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/metrics"
)

// DefaultRegistryTTL is how long a loaded catalog is served before a reload.
const DefaultRegistryTTL = 5 * time.Minute

// Ensure ProviderRegistry implements the interface.
var _ driving.ProviderRegistry = (*ProviderRegistry)(nil)

// catalog is an immutable view of the registry. Readers hold a pointer to
// one catalog; reloads build a new one and swap it in.
type catalog struct {
	providers []domain.ProviderDescriptor
	embedding []domain.EmbeddingProviderDescriptor
	byID      map[string]int
	embByID   map[string]int
	loadedAt  time.Time
	fallback  bool
}

func newCatalog(providers []domain.ProviderDescriptor, embedding []domain.EmbeddingProviderDescriptor,
	loadedAt time.Time, fallback bool) *catalog {
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID < providers[j].ID })
	sort.Slice(embedding, func(i, j int) bool { return embedding[i].ID < embedding[j].ID })

	c := &catalog{
		providers: providers,
		embedding: embedding,
		byID:      make(map[string]int, len(providers)),
		embByID:   make(map[string]int, len(embedding)),
		loadedAt:  loadedAt,
		fallback:  fallback,
	}
	for i, p := range providers {
		c.byID[p.ID] = i
	}
	for i, p := range embedding {
		c.embByID[p.ID] = i
	}
	return c
}

// restamped returns a copy of c with a new load time. The slices are shared
// since catalogs are never mutated.
func (c *catalog) restamped(at time.Time) *catalog {
	cp := *c
	cp.loadedAt = at
	return &cp
}

// RegistryOption configures a ProviderRegistry.
type RegistryOption func(*ProviderRegistry)

// WithTTL sets the cache time-to-live. Non-positive values keep the default.
func WithTTL(ttl time.Duration) RegistryOption {
	return func(r *ProviderRegistry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *ProviderRegistry) {
		r.now = now
	}
}

// WithFallback replaces the built-in descriptors served when the store fails.
func WithFallback(providers []domain.ProviderDescriptor, embedding []domain.EmbeddingProviderDescriptor) RegistryOption {
	return func(r *ProviderRegistry) {
		r.fallbackProviders = providers
		r.fallbackEmbedding = embedding
	}
}

// ProviderRegistry is a read-through cache over a RegistryStore.
// Reads never block on each other; reloads are serialised and published by
// swapping an immutable catalog.
type ProviderRegistry struct {
	store driven.RegistryStore
	ttl   time.Duration
	now   func() time.Time

	fallbackProviders []domain.ProviderDescriptor
	fallbackEmbedding []domain.EmbeddingProviderDescriptor

	current atomic.Pointer[catalog]
	reload  sync.Mutex
}

// NewProviderRegistry creates a registry over store. A nil store serves the
// built-in catalog only.
func NewProviderRegistry(store driven.RegistryStore, opts ...RegistryOption) *ProviderRegistry {
	r := &ProviderRegistry{
		store:             store,
		ttl:               DefaultRegistryTTL,
		now:               time.Now,
		fallbackProviders: BuiltinProviders(),
		fallbackEmbedding: BuiltinEmbeddingProviders(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListProviders returns all generation providers sorted by id.
func (r *ProviderRegistry) ListProviders(ctx context.Context) []domain.ProviderDescriptor {
	c := r.catalog(ctx)
	out := make([]domain.ProviderDescriptor, len(c.providers))
	for i, p := range c.providers {
		out[i] = p.Clone()
	}
	return out
}

// GetProvider returns one generation provider.
func (r *ProviderRegistry) GetProvider(ctx context.Context, id string) (domain.ProviderDescriptor, error) {
	c := r.catalog(ctx)
	i, ok := c.byID[id]
	if !ok {
		return domain.ProviderDescriptor{}, domain.NewOpError(domain.ErrUnknownProvider, "get provider", id, "", domain.ErrNotFound)
	}
	return c.providers[i].Clone(), nil
}

// ListEmbeddingProviders returns all embedding providers sorted by id.
func (r *ProviderRegistry) ListEmbeddingProviders(ctx context.Context) []domain.EmbeddingProviderDescriptor {
	c := r.catalog(ctx)
	out := make([]domain.EmbeddingProviderDescriptor, len(c.embedding))
	for i, p := range c.embedding {
		out[i] = p.Clone()
	}
	return out
}

// GetEmbeddingProvider returns one embedding provider.
func (r *ProviderRegistry) GetEmbeddingProvider(ctx context.Context, id string) (domain.EmbeddingProviderDescriptor, error) {
	c := r.catalog(ctx)
	i, ok := c.embByID[id]
	if !ok {
		return domain.EmbeddingProviderDescriptor{}, domain.NewOpError(domain.ErrUnknownProvider, "get embedding provider", id, "", domain.ErrNotFound)
	}
	return c.embedding[i].Clone(), nil
}

// CredentialSchema returns the credential fields a provider id accepts.
// An id registered for both generation and embedding gets the union of
// both field lists; a field is required if either side requires it.
func (r *ProviderRegistry) CredentialSchema(ctx context.Context, id string) ([]domain.CredentialField, error) {
	c := r.catalog(ctx)
	gi, genOK := c.byID[id]
	ei, embOK := c.embByID[id]
	if !genOK && !embOK {
		return nil, domain.NewOpError(domain.ErrUnknownProvider, "credential schema", id, "", domain.ErrNotFound)
	}

	var fields []domain.CredentialField
	index := make(map[string]int)
	merge := func(src []domain.CredentialField) {
		for _, f := range src {
			if j, ok := index[f.Name]; ok {
				fields[j].Required = fields[j].Required || f.Required
				if fields[j].Env == "" {
					fields[j].Env = f.Env
				}
				continue
			}
			index[f.Name] = len(fields)
			fields = append(fields, f)
		}
	}
	if genOK {
		merge(c.providers[gi].CredentialFields)
	}
	if embOK {
		merge(c.embedding[ei].CredentialFields)
	}
	return fields, nil
}

// Degraded reports whether the registry is serving the built-in fallback.
func (r *ProviderRegistry) Degraded(ctx context.Context) bool {
	return r.catalog(ctx).fallback
}

// Refresh reloads from the backing store, bypassing the cache. If the store
// fails the previous catalog (or the fallback) stays in place and the
// error is returned.
func (r *ProviderRegistry) Refresh(ctx context.Context) error {
	_, err := r.load(ctx, true)
	return err
}

// Invalidate expires the cached catalog so the next read reloads it.
func (r *ProviderRegistry) Invalidate() {
	r.reload.Lock()
	defer r.reload.Unlock()
	if c := r.current.Load(); c != nil {
		r.current.Store(c.restamped(time.Time{}))
	}
}

// UpsertProvider writes a generation provider record and refreshes.
func (r *ProviderRegistry) UpsertProvider(ctx context.Context, rec domain.ProviderRecord) error {
	if _, err := rec.Descriptor(); err != nil {
		return err
	}
	if r.store == nil {
		return fmt.Errorf("registry: %w: no store configured", domain.ErrRegistryUnavailable)
	}
	if err := r.store.UpsertProvider(ctx, rec); err != nil {
		return fmt.Errorf("registry: upsert provider %s: %w: %w", rec.Provider, domain.ErrRegistryUnavailable, err)
	}
	return r.Refresh(ctx)
}

// UpsertEmbeddingProvider writes an embedding provider record and refreshes.
func (r *ProviderRegistry) UpsertEmbeddingProvider(ctx context.Context, rec domain.EmbeddingProviderRecord) error {
	if _, err := rec.Descriptor(); err != nil {
		return err
	}
	if r.store == nil {
		return fmt.Errorf("registry: %w: no store configured", domain.ErrRegistryUnavailable)
	}
	if err := r.store.UpsertEmbeddingProvider(ctx, rec); err != nil {
		return fmt.Errorf("registry: upsert embedding provider %s: %w: %w", rec.Provider, domain.ErrRegistryUnavailable, err)
	}
	return r.Refresh(ctx)
}

// DeleteProvider removes a generation provider record and refreshes.
// An id the store does not hold is domain.ErrNotFound.
func (r *ProviderRegistry) DeleteProvider(ctx context.Context, id string) error {
	if r.store == nil {
		return fmt.Errorf("registry: %w: no store configured", domain.ErrRegistryUnavailable)
	}
	if err := r.store.DeleteProvider(ctx, id); err != nil {
		return deleteError("provider", id, err)
	}
	return r.Refresh(ctx)
}

// DeleteEmbeddingProvider removes an embedding provider record and refreshes.
func (r *ProviderRegistry) DeleteEmbeddingProvider(ctx context.Context, id string) error {
	if r.store == nil {
		return fmt.Errorf("registry: %w: no store configured", domain.ErrRegistryUnavailable)
	}
	if err := r.store.DeleteEmbeddingProvider(ctx, id); err != nil {
		return deleteError("embedding provider", id, err)
	}
	return r.Refresh(ctx)
}

func deleteError(kind, id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewOpError(domain.ErrUnknownProvider, "delete "+kind, id, "", err)
	}
	return fmt.Errorf("registry: delete %s %s: %w: %w", kind, id, domain.ErrRegistryUnavailable, err)
}

// catalog returns the current catalog, reloading it when expired.
func (r *ProviderRegistry) catalog(ctx context.Context) *catalog {
	if c := r.current.Load(); c != nil && r.fresh(c) {
		return c
	}
	c, _ := r.load(ctx, false)
	return c
}

func (r *ProviderRegistry) fresh(c *catalog) bool {
	return r.now().Sub(c.loadedAt) < r.ttl
}

// load reads the store and publishes a new catalog. Unless force is set, a
// caller that waited on another reload reuses its result.
func (r *ProviderRegistry) load(ctx context.Context, force bool) (*catalog, error) {
	r.reload.Lock()
	defer r.reload.Unlock()

	prev := r.current.Load()
	if !force && prev != nil && r.fresh(prev) {
		return prev, nil
	}

	now := r.now()
	next, err := r.read(ctx, now)
	if err != nil {
		metrics.RegistryFallbackTotal.Inc()
		if prev != nil && !prev.fallback {
			logger.Warn("provider registry unavailable, keeping catalog loaded at %s: %v",
				prev.loadedAt.Format(time.RFC3339), err)
			next = prev.restamped(now)
		} else {
			logger.Warn("provider registry unavailable, serving built-in providers: %v", err)
			next = r.fallbackCatalog(now)
		}
		r.current.Store(next)
		return next, err
	}

	r.current.Store(next)
	logger.Debug("provider registry loaded: %d generation, %d embedding providers",
		len(next.providers), len(next.embedding))
	return next, nil
}

// read builds a catalog from the store. An empty store yields the
// built-in catalog.
func (r *ProviderRegistry) read(ctx context.Context, now time.Time) (*catalog, error) {
	if r.store == nil {
		return r.fallbackCatalog(now), nil
	}

	records, err := r.store.ListProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list providers: %w: %w", domain.ErrRegistryUnavailable, err)
	}
	embRecords, err := r.store.ListEmbeddingProviders(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list embedding providers: %w: %w", domain.ErrRegistryUnavailable, err)
	}

	providers := make([]domain.ProviderDescriptor, 0, len(records))
	for _, rec := range records {
		d, err := rec.Descriptor()
		if err != nil {
			logger.Warn("skipping provider record %q: %v", rec.Provider, err)
			continue
		}
		providers = append(providers, d)
	}
	embedding := make([]domain.EmbeddingProviderDescriptor, 0, len(embRecords))
	for _, rec := range embRecords {
		d, err := rec.Descriptor()
		if err != nil {
			logger.Warn("skipping embedding provider record %q: %v", rec.Provider, err)
			continue
		}
		embedding = append(embedding, d)
	}

	if len(providers) == 0 && len(embedding) == 0 {
		logger.Debug("provider registry store is empty, using built-in providers")
		c := r.fallbackCatalog(now)
		c.fallback = false
		return c, nil
	}
	return newCatalog(providers, embedding, now, false), nil
}

func (r *ProviderRegistry) fallbackCatalog(now time.Time) *catalog {
	providers := make([]domain.ProviderDescriptor, len(r.fallbackProviders))
	for i, p := range r.fallbackProviders {
		providers[i] = p.Clone()
	}
	embedding := make([]domain.EmbeddingProviderDescriptor, len(r.fallbackEmbedding))
	for i, p := range r.fallbackEmbedding {
		embedding[i] = p.Clone()
	}
	return newCatalog(providers, embedding, now, true)
}
