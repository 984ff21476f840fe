// Package redis provides a Redis-backed document store for the provider
// registry. Each collection is a hash keyed by provider id whose values are
// JSON documents, so several docqa processes can share one catalog.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultPrefix namespaces registry keys.
const DefaultPrefix = "docqa:registry:"

// Hash names under the prefix.
const (
	collectionProviders          = "providers"
	collectionEmbeddingProviders = "embedding_providers"
)

// Ensure Store implements the interface.
var _ driven.RegistryStore = (*Store)(nil)

// Store is a Redis-backed registry store.
type Store struct {
	client redis.UniversalClient
	prefix string
	owned  bool
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// NewStore connects to addr and verifies the connection.
func NewStore(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis registry: %w: address is required", domain.ErrConfiguration)
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis registry: ping %s: %w", addr, err)
	}
	s := NewStoreFromClient(client, opts...)
	s.owned = true
	return s, nil
}

// NewStoreFromClient wraps an existing client. Close leaves the client open.
func NewStoreFromClient(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the client if the store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// ListProviders returns all generation provider records sorted by id.
func (s *Store) ListProviders(ctx context.Context) ([]domain.ProviderRecord, error) {
	return listDocs[domain.ProviderRecord](ctx, s.client, s.key(collectionProviders))
}

// ListEmbeddingProviders returns all embedding provider records sorted by id.
func (s *Store) ListEmbeddingProviders(ctx context.Context) ([]domain.EmbeddingProviderRecord, error) {
	return listDocs[domain.EmbeddingProviderRecord](ctx, s.client, s.key(collectionEmbeddingProviders))
}

// UpsertProvider inserts or replaces a generation provider record.
func (s *Store) UpsertProvider(ctx context.Context, rec domain.ProviderRecord) error {
	return s.upsert(ctx, collectionProviders, rec.Provider, rec)
}

// UpsertEmbeddingProvider inserts or replaces an embedding provider record.
func (s *Store) UpsertEmbeddingProvider(ctx context.Context, rec domain.EmbeddingProviderRecord) error {
	return s.upsert(ctx, collectionEmbeddingProviders, rec.Provider, rec)
}

// DeleteProvider removes a generation provider record.
func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	return s.delete(ctx, collectionProviders, id)
}

// DeleteEmbeddingProvider removes an embedding provider record.
func (s *Store) DeleteEmbeddingProvider(ctx context.Context, id string) error {
	return s.delete(ctx, collectionEmbeddingProviders, id)
}

func (s *Store) key(collection string) string {
	return s.prefix + collection
}

func (s *Store) upsert(ctx context.Context, collection, id string, rec any) error {
	if id == "" {
		return fmt.Errorf("redis registry: %w: missing provider id", domain.ErrConfiguration)
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis registry: encode %s: %w", id, err)
	}
	if err := s.client.HSet(ctx, s.key(collection), id, doc).Err(); err != nil {
		return fmt.Errorf("redis registry: upsert %s: %w", id, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, collection, id string) error {
	n, err := s.client.HDel(ctx, s.key(collection), id).Result()
	if err != nil {
		return fmt.Errorf("redis registry: delete %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func listDocs[T any](ctx context.Context, client redis.UniversalClient, key string) ([]T, error) {
	docs, err := client.HGetAll(ctx, key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis registry: list %s: %w", key, err)
	}

	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	result := make([]T, 0, len(ids))
	for _, id := range ids {
		var rec T
		if err := json.Unmarshal([]byte(docs[id]), &rec); err != nil {
			logger.Warn("redis registry: skipping undecodable %s entry %q: %v", key, id, err)
			continue
		}
		result = append(result, rec)
	}
	return result, nil
}
