package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Pipeline defaults.
const (
	DefaultBatchSize     = 64
	DefaultWorkers       = 4
	DefaultRatePerSecond = 10.0
)

// PipelineConfig bounds how a build talks to the embedding provider.
type PipelineConfig struct {
	// BatchSize is the number of chunks per embedding call.
	BatchSize int

	// Workers is the number of batches in flight when the provider
	// accepts concurrent requests. Otherwise batches run one at a time.
	Workers int

	// RatePerSecond limits embedding calls. Negative means unlimited.
	RatePerSecond float64
}

// RetrievalPipeline chunks, embeds and indexes documents.
type RetrievalPipeline struct {
	chunking   driven.ChunkingPipelineFactory
	embeddings *EmbeddingFactory
	newIndex   driven.VectorIndexFactory
	cfg        PipelineConfig
	limiter    *rate.Limiter
}

// NewRetrievalPipeline creates a pipeline. Zero config values take defaults.
func NewRetrievalPipeline(chunking driven.ChunkingPipelineFactory, embeddings *EmbeddingFactory,
	newIndex driven.VectorIndexFactory, cfg PipelineConfig) *RetrievalPipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}

	limit, burst := rate.Inf, 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = max(1, int(cfg.RatePerSecond))
	}

	return &RetrievalPipeline{
		chunking:   chunking,
		embeddings: embeddings,
		newIndex:   newIndex,
		cfg:        cfg,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// Build returns a fully populated index for the documents, or an error and
// no index at all. Chunks are embedded in batches; a failing batch cancels
// the rest and discards everything embedded so far.
func (p *RetrievalPipeline) Build(ctx context.Context, creds CredentialSource,
	docs []domain.Document, params domain.RetrieverParams) (driven.VectorIndex, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	handle, err := p.embeddings.Initialize(ctx, creds, params.EmbeddingProvider, params.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	chunker, err := p.chunking(params.ChunkSize, params.Overlap)
	if err != nil {
		return nil, err
	}
	chunks, err := chunker.ProcessAll(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("pipeline: chunk documents: %w", err)
	}

	index := p.newIndex()
	if len(chunks) == 0 {
		logger.Info("no content to index in %d documents", len(docs))
		return index, nil
	}

	vectors, err := p.embedAll(ctx, handle, chunks)
	if err != nil {
		return nil, err
	}

	want := params.Signature()
	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		if vectors[i].Signature != want {
			return nil, domain.NewOpError(domain.ErrSignatureMismatch, "build index",
				vectors[i].Signature.ProviderID, vectors[i].Signature.ModelID,
				fmt.Errorf("retriever expects %s", want))
		}
		entries[i] = domain.IndexEntry{Chunk: c, Vector: vectors[i].Values, Signature: vectors[i].Signature}
	}
	if err := index.Add(entries); err != nil {
		return nil, err
	}

	logger.Info("indexed %d chunks from %d documents with %s", len(chunks), len(docs), want)
	return index, nil
}

// embedAll embeds chunks in batches through a bounded worker pool and
// returns the vectors in chunk order.
func (p *RetrievalPipeline) embedAll(ctx context.Context, h *EmbeddingHandle, chunks []domain.Chunk) ([]domain.Vector, error) {
	workers := 1
	if h.Capabilities().Concurrent {
		workers = p.cfg.Workers
	}
	batches := (len(chunks) + p.cfg.BatchSize - 1) / p.cfg.BatchSize
	logger.Debug("embedding %d chunks in %d batches with %d workers", len(chunks), batches, workers)

	vectors := make([]domain.Vector, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(chunks); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(chunks))
		g.Go(func() error {
			if err := p.limiter.Wait(gctx); err != nil {
				return err
			}
			texts := make([]string, end-start)
			for i := range texts {
				texts[i] = chunks[start+i].Text
			}
			out, err := p.embeddings.Embed(gctx, h, texts)
			if err != nil {
				return err
			}
			copy(vectors[start:end], out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var opErr *domain.OpError
		if errors.As(err, &opErr) {
			return nil, err
		}
		sig := h.Signature()
		kind := domain.ErrEmbedding
		if domain.IsTimeout(err) {
			kind = domain.ErrEmbeddingTimeout
		}
		return nil, domain.NewOpError(kind, "embed", sig.ProviderID, sig.ModelID, err)
	}
	return vectors, nil
}
