package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/postprocessors"
)

func newTestPipeline(t *testing.T, fx *embeddingFixture, cfg PipelineConfig) *RetrievalPipeline {
	t.Helper()
	r := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(r)
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = -1
	}
	return NewRetrievalPipeline(postprocessors.ChunkingFactory(r), fx.factory, flat.Factory(), cfg)
}

func acmeParams(size, overlap int) domain.RetrieverParams {
	return domain.RetrieverParams{
		ChunkSize:         size,
		Overlap:           overlap,
		EmbeddingProvider: "acme",
		EmbeddingModel:    "acme-embed",
	}
}

func manyDocs(n int) []domain.Document {
	docs := make([]domain.Document, n)
	for i := range docs {
		docs[i] = domain.Document{
			ID:      fmt.Sprintf("doc-%d", i),
			Content: strings.Repeat(fmt.Sprintf("Document %d talks about topic %d at length. ", i, i), 10),
		}
	}
	return docs
}

func TestRetrievalPipeline_Build(t *testing.T) {
	fx := newEmbeddingFixture(t, true, nil)
	p := newTestPipeline(t, fx, PipelineConfig{BatchSize: 4})

	index, err := p.Build(context.Background(), fx.creds, manyDocs(3), acmeParams(200, 40))
	require.NoError(t, err)

	assert.Greater(t, index.Len(), 3)
	sig, ok := index.EmbeddingSignature()
	require.True(t, ok)
	assert.Equal(t, domain.EmbeddingSignature{ProviderID: "acme", ModelID: "acme-embed"}, sig)
}

func TestRetrievalPipeline_RoundTripRetrieval(t *testing.T) {
	fx := newEmbeddingFixture(t, true, nil)
	p := newTestPipeline(t, fx, PipelineConfig{})
	ctx := context.Background()
	sentence := "The xylophone model runs at dawn."

	docs := append(manyDocs(2), domain.Document{ID: "unique", Content: sentence})
	index, err := p.Build(ctx, fx.creds, docs, acmeParams(500, 100))
	require.NoError(t, err)

	h, err := fx.factory.Initialize(ctx, fx.creds, "acme", "acme-embed")
	require.NoError(t, err)
	q, err := fx.factory.Embed(ctx, h, []string{sentence})
	require.NoError(t, err)

	result, err := index.Query(q[0].Values, index.Len())
	require.NoError(t, err)
	require.NotEmpty(t, result)
	assert.Equal(t, sentence, result[0].Chunk.Text)
	for _, r := range result[1:] {
		assert.Less(t, r.Score, result[0].Score)
	}
}

func TestRetrievalPipeline_InvalidParams(t *testing.T) {
	fx := newEmbeddingFixture(t, true, nil)
	p := newTestPipeline(t, fx, PipelineConfig{})

	tests := []struct {
		name   string
		params domain.RetrieverParams
	}{
		{"overlap equals size", acmeParams(100, 100)},
		{"overlap exceeds size", acmeParams(100, 150)},
		{"zero size", acmeParams(0, 0)},
		{"negative overlap", acmeParams(100, -1)},
		{"no embedding model", domain.RetrieverParams{ChunkSize: 100, EmbeddingProvider: "acme"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, err := p.Build(context.Background(), fx.creds, manyDocs(1), tt.params)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Nil(t, index)
		})
	}
	assert.Zero(t, fx.driver.connects.Load())
}

func TestRetrievalPipeline_BatchFailureDiscardsIndex(t *testing.T) {
	fx := newEmbeddingFixture(t, true, nil)
	fx.driver.embedErr = errUpstream
	fx.driver.failAfter = 2
	p := newTestPipeline(t, fx, PipelineConfig{BatchSize: 2, Workers: 1})

	index, err := p.Build(context.Background(), fx.creds, manyDocs(4), acmeParams(100, 20))
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Nil(t, index, "no partial index is returned")
}

func TestRetrievalPipeline_BoundedWorkers(t *testing.T) {
	tests := []struct {
		name       string
		concurrent bool
		workers    int
		wantPeak   int32
	}{
		{"concurrent provider", true, 3, 3},
		{"sequential provider", false, 3, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newEmbeddingFixture(t, true, nil)
			if !tt.concurrent {
				require.NoError(t, fx.registry.UpsertEmbeddingProvider(context.Background(), domain.EmbeddingProviderRecord{
					Provider:         "acme",
					CredentialFields: []domain.CredentialFieldRecord{{Name: "api_key", Type: "secret", Required: true}},
					Models:           []domain.EmbeddingModelRecord{{Model: "acme-embed", Dimensions: 64}},
					Batch:            true,
				}))
			}
			fx.driver.delay = 20 * time.Millisecond
			p := newTestPipeline(t, fx, PipelineConfig{BatchSize: 1, Workers: tt.workers})

			_, err := p.Build(context.Background(), fx.creds, manyDocs(4), acmeParams(100, 20))
			require.NoError(t, err)
			assert.LessOrEqual(t, fx.driver.maxFlight.Load(), tt.wantPeak)
			if !tt.concurrent {
				assert.Equal(t, int32(1), fx.driver.maxFlight.Load())
			}
		})
	}
}

func TestRetrievalPipeline_RateLimiter(t *testing.T) {
	fx := newEmbeddingFixture(t, true, nil)

	limited := newTestPipeline(t, fx, PipelineConfig{RatePerSecond: 2.5})
	assert.Equal(t, rate.Limit(2.5), limited.limiter.Limit())
	assert.Equal(t, 2, limited.limiter.Burst())

	unlimited := newTestPipeline(t, fx, PipelineConfig{RatePerSecond: -1})
	assert.Equal(t, rate.Inf, unlimited.limiter.Limit())

	defaults := NewRetrievalPipeline(nil, fx.factory, flat.Factory(), PipelineConfig{})
	assert.Equal(t, rate.Limit(DefaultRatePerSecond), defaults.limiter.Limit())
	assert.Equal(t, DefaultBatchSize, defaults.cfg.BatchSize)
	assert.Equal(t, DefaultWorkers, defaults.cfg.Workers)
}

func TestRetrievalPipeline_CancelledContext(t *testing.T) {
	fx := newEmbeddingFixture(t, true, nil)
	p := newTestPipeline(t, fx, PipelineConfig{BatchSize: 1})
	ctx := context.Background()
	_, err := fx.factory.Initialize(ctx, fx.creds, "acme", "acme-embed")
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	index, err := p.Build(cancelled, fx.creds, manyDocs(2), acmeParams(100, 20))
	assert.Error(t, err)
	assert.Nil(t, index)
}

func TestRetrievalPipeline_EmptyDocuments(t *testing.T) {
	fx := newEmbeddingFixture(t, true, nil)
	p := newTestPipeline(t, fx, PipelineConfig{})

	index, err := p.Build(context.Background(), fx.creds, []domain.Document{{ID: "blank"}}, acmeParams(100, 20))
	require.NoError(t, err)
	assert.Zero(t, index.Len())
	assert.Zero(t, fx.driver.batchCalls.Load())
}
