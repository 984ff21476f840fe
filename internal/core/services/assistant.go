package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Assistant implements the interface.
var _ driving.AssistantService = (*Assistant)(nil)

// AssistantDeps are the process-wide components an Assistant uses.
type AssistantDeps struct {
	Registry   driving.ProviderRegistry
	Models     *ModelFactory
	Embeddings *EmbeddingFactory
	Pipeline   *RetrievalPipeline
	Engine     *RAGQueryEngine
	Extractor  driven.TextExtractor
}

// Assistant builds retrievers and answers questions for one session.
type Assistant struct {
	session *Session
	deps    AssistantDeps
	now     func() time.Time

	mu         sync.RWMutex
	retrievers map[string]*Retriever
}

// NewAssistant creates an assistant bound to a session.
func NewAssistant(session *Session, deps AssistantDeps) *Assistant {
	return &Assistant{
		session:    session,
		deps:       deps,
		now:        time.Now,
		retrievers: make(map[string]*Retriever),
	}
}

// Session returns the assistant's session.
func (a *Assistant) Session() *Session { return a.session }

// BuildRetriever extracts the sources, builds an index and returns the
// new retriever's handle. Nothing is registered if any step fails.
func (a *Assistant) BuildRetriever(ctx context.Context, req driving.BuildRequest) (string, error) {
	if err := a.checkOpen(); err != nil {
		return "", err
	}
	params := domain.RetrieverParams{
		ChunkSize:         req.ChunkSize,
		Overlap:           req.Overlap,
		EmbeddingProvider: req.EmbeddingProvider,
		EmbeddingModel:    req.EmbeddingModel,
	}
	if err := params.Validate(); err != nil {
		return "", err
	}
	if len(req.SourcePaths) == 0 {
		return "", fmt.Errorf("assistant: %w: at least one source path is required", domain.ErrConfiguration)
	}

	docs := make([]domain.Document, 0, len(req.SourcePaths))
	for _, path := range req.SourcePaths {
		doc, err := a.deps.Extractor.Extract(ctx, path)
		if err != nil {
			return "", fmt.Errorf("assistant: extract %s: %w", path, err)
		}
		docs = append(docs, *doc)
	}

	r := newRetriever(uuid.NewString(), params, append([]string(nil), req.SourcePaths...), docs)
	if err := a.build(ctx, r); err != nil {
		return "", err
	}

	a.mu.Lock()
	a.retrievers[r.ID()] = r
	a.mu.Unlock()
	logger.Info("retriever %s ready: %d sources", r.ID(), len(docs))
	return r.ID(), nil
}

// Ask answers a question from a Ready retriever. Stale retrievers are
// rejected with domain.ErrStaleIndex.
func (a *Assistant) Ask(ctx context.Context, req driving.AskRequest) (*domain.Answer, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("assistant: %w: question must not be empty", domain.ErrConfiguration)
	}
	if req.K <= 0 {
		return nil, fmt.Errorf("assistant: %w: k must be positive, got %d", domain.ErrConfiguration, req.K)
	}

	r, err := a.retriever(req.RetrieverID)
	if err != nil {
		return nil, err
	}
	index, params, err := r.queryable()
	if err != nil {
		return nil, err
	}

	creds := a.session.Credentials()
	model, err := a.deps.Models.Initialize(ctx, creds, req.Provider, req.Model,
		domain.GenerationParams{Temperature: req.Temperature})
	if err != nil {
		return nil, err
	}
	embedder, err := a.deps.Embeddings.Initialize(ctx, creds, params.EmbeddingProvider, params.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	return a.deps.Engine.Query(ctx, QueryRequest{
		Index:    index,
		Question: req.Question,
		K:        req.K,
		Embedder: embedder,
		Model:    model,
		Titles:   r.titles,
	})
}

// Retriever returns a snapshot of a retriever's state.
func (a *Assistant) Retriever(id string) (domain.RetrieverInfo, error) {
	r, err := a.retriever(id)
	if err != nil {
		return domain.RetrieverInfo{}, err
	}
	return r.Info(), nil
}

// Retrievers returns snapshots of every retriever in the session.
func (a *Assistant) Retrievers() []domain.RetrieverInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	infos := make([]domain.RetrieverInfo, 0, len(a.retrievers))
	for _, r := range a.retrievers {
		infos = append(infos, r.Info())
	}
	return infos
}

// UpdateRetriever changes a retriever's chunking or embedding parameters.
func (a *Assistant) UpdateRetriever(id string, params domain.RetrieverParams) error {
	r, err := a.retriever(id)
	if err != nil {
		return err
	}
	return r.update(params)
}

// RebuildRetriever re-ingests the retriever's documents with its current
// parameters.
func (a *Assistant) RebuildRetriever(ctx context.Context, id string) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	r, err := a.retriever(id)
	if err != nil {
		return err
	}
	return a.build(ctx, r)
}

// RemoveRetriever discards a retriever.
func (a *Assistant) RemoveRetriever(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.retrievers, id)
}

// Close discards every retriever, releases the session's cached handles and
// clears its credentials.
func (a *Assistant) Close() {
	a.mu.Lock()
	a.retrievers = make(map[string]*Retriever)
	a.mu.Unlock()

	if a.deps.Registry != nil {
		ctx := context.Background()
		creds := a.session.Credentials()
		for _, p := range a.deps.Registry.ListProviders(ctx) {
			fp, _ := creds.Fingerprint(p.ID)
			a.deps.Models.Release(p.ID, fp)
		}
		for _, p := range a.deps.Registry.ListEmbeddingProviders(ctx) {
			fp, _ := creds.Fingerprint(p.ID)
			a.deps.Embeddings.Release(p.ID, fp)
		}
	}
	a.session.Close()
}

func (a *Assistant) build(ctx context.Context, r *Retriever) error {
	params, docs, err := r.beginBuild()
	if err != nil {
		return err
	}
	index, err := a.deps.Pipeline.Build(ctx, a.session.Credentials(), docs, params)
	if err != nil {
		r.failBuild()
		return err
	}
	r.finishBuild(params, index, a.now())
	return nil
}

func (a *Assistant) retriever(id string) (*Retriever, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.retrievers[id]
	if !ok {
		return nil, fmt.Errorf("assistant: retriever %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (a *Assistant) checkOpen() error {
	if a.session.Closed() {
		return fmt.Errorf("assistant: session %s: %w", a.session.ID(), domain.ErrClosed)
	}
	return nil
}
