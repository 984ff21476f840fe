package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// setupTestStore connects to DOCQA_TEST_REDIS_ADDR using a unique prefix.
// Tests are skipped when no server is configured.
func setupTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	addr := os.Getenv("DOCQA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DOCQA_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())

	prefix := "docqa:test:" + uuid.NewString() + ":"
	store := NewStoreFromClient(client, WithPrefix(prefix))
	t.Cleanup(func() {
		ctx := context.Background()
		client.Del(ctx, prefix+collectionProviders, prefix+collectionEmbeddingProviders)
		client.Close()
	})
	return store, client
}

func TestNewStore_RequiresAddress(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestNewStore_UnreachableServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStore(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}

func TestStore_KeyPrefix(t *testing.T) {
	s := NewStoreFromClient(nil)
	assert.Equal(t, "docqa:registry:providers", s.key(collectionProviders))

	s = NewStoreFromClient(nil, WithPrefix("team:"))
	assert.Equal(t, "team:embedding_providers", s.key(collectionEmbeddingProviders))
}

func TestStore_CloseLeavesSharedClientOpen(t *testing.T) {
	s := NewStoreFromClient(nil)
	assert.NoError(t, s.Close())
}

func TestStore_UpsertListDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertProvider(ctx, domain.ProviderRecord{Provider: "zeta", Models: []string{"z"}}))
	require.NoError(t, store.UpsertProvider(ctx, domain.ProviderRecord{Provider: "alpha", Models: []string{"a"}}))
	require.NoError(t, store.UpsertProvider(ctx, domain.ProviderRecord{Provider: "alpha", Models: []string{"a2"}}))

	records, err := store.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "alpha", records[0].Provider)
	assert.Equal(t, []string{"a2"}, records[0].Models)

	require.NoError(t, store.DeleteProvider(ctx, "alpha"))
	assert.ErrorIs(t, store.DeleteProvider(ctx, "alpha"), domain.ErrNotFound)
}

func TestStore_EmbeddingProviders(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	rec := domain.EmbeddingProviderRecord{
		Provider: "ollama",
		Models:   []domain.EmbeddingModelRecord{{Model: "nomic-embed-text", Dimensions: 768}},
	}

	require.NoError(t, store.UpsertEmbeddingProvider(ctx, rec))
	records, err := store.ListEmbeddingProviders(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.EmbeddingProviderRecord{rec}, records)
}

func TestStore_EmptyCollections(t *testing.T) {
	store, _ := setupTestStore(t)
	records, err := store.ListProviders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStore_SkipsUndecodableEntries(t *testing.T) {
	store, client := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertProvider(ctx, domain.ProviderRecord{Provider: "openai"}))
	require.NoError(t, client.HSet(ctx, store.key(collectionProviders), "broken", "{").Err())

	records, err := store.ListProviders(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "openai", records[0].Provider)
}

func TestStore_MissingID(t *testing.T) {
	s := NewStoreFromClient(nil)
	err := s.UpsertEmbeddingProvider(context.Background(), domain.EmbeddingProviderRecord{})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
