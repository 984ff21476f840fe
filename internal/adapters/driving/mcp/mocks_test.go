package mcp

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// mockRegistry is a mock implementation of driving.ProviderRegistry.
type mockRegistry struct {
	providers []domain.ProviderDescriptor
	embedding []domain.EmbeddingProviderDescriptor
	err       error
}

func (m *mockRegistry) ListProviders(_ context.Context) []domain.ProviderDescriptor {
	return m.providers
}

func (m *mockRegistry) GetProvider(_ context.Context, id string) (domain.ProviderDescriptor, error) {
	for _, p := range m.providers {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.ProviderDescriptor{}, domain.ErrUnknownProvider
}

func (m *mockRegistry) ListEmbeddingProviders(_ context.Context) []domain.EmbeddingProviderDescriptor {
	return m.embedding
}

func (m *mockRegistry) GetEmbeddingProvider(_ context.Context, id string) (domain.EmbeddingProviderDescriptor, error) {
	for _, p := range m.embedding {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.EmbeddingProviderDescriptor{}, domain.ErrUnknownProvider
}

func (m *mockRegistry) Refresh(_ context.Context) error {
	return m.err
}

func (m *mockRegistry) UpsertProvider(_ context.Context, _ domain.ProviderRecord) error {
	return m.err
}

func (m *mockRegistry) UpsertEmbeddingProvider(_ context.Context, _ domain.EmbeddingProviderRecord) error {
	return m.err
}

func (m *mockRegistry) DeleteProvider(_ context.Context, _ string) error {
	return m.err
}

func (m *mockRegistry) DeleteEmbeddingProvider(_ context.Context, _ string) error {
	return m.err
}

// mockAssistant is a mock implementation of driving.AssistantService.
type mockAssistant struct {
	retrievers map[string]domain.RetrieverInfo
	answer     *domain.Answer
	buildErr   error
	askErr     error

	lastBuild driving.BuildRequest
	lastAsk   driving.AskRequest
}

func newMockAssistant() *mockAssistant {
	return &mockAssistant{retrievers: make(map[string]domain.RetrieverInfo)}
}

func (m *mockAssistant) BuildRetriever(_ context.Context, req driving.BuildRequest) (string, error) {
	m.lastBuild = req
	if m.buildErr != nil {
		return "", m.buildErr
	}
	id := "ret-1"
	m.retrievers[id] = domain.RetrieverInfo{
		ID:    id,
		State: domain.RetrieverReady,
		Params: domain.RetrieverParams{
			ChunkSize:         req.ChunkSize,
			Overlap:           req.Overlap,
			EmbeddingProvider: req.EmbeddingProvider,
			EmbeddingModel:    req.EmbeddingModel,
		},
		Sources:   req.SourcePaths,
		Chunks:    3,
		Signature: domain.EmbeddingSignature{ProviderID: req.EmbeddingProvider, ModelID: req.EmbeddingModel},
	}
	return id, nil
}

func (m *mockAssistant) Ask(_ context.Context, req driving.AskRequest) (*domain.Answer, error) {
	m.lastAsk = req
	if m.askErr != nil {
		return nil, m.askErr
	}
	return m.answer, nil
}

func (m *mockAssistant) Retriever(id string) (domain.RetrieverInfo, error) {
	info, ok := m.retrievers[id]
	if !ok {
		return domain.RetrieverInfo{}, domain.ErrNotFound
	}
	return info, nil
}

func (m *mockAssistant) UpdateRetriever(_ string, _ domain.RetrieverParams) error {
	return nil
}

func (m *mockAssistant) RebuildRetriever(_ context.Context, _ string) error {
	return nil
}

func (m *mockAssistant) RemoveRetriever(id string) {
	delete(m.retrievers, id)
}

// mockCredentials is a mock implementation of driving.CredentialService.
type mockCredentials struct {
	configured map[string]bool
}

func (m *mockCredentials) Set(_ context.Context, id string, _ domain.CredentialFields) error {
	m.configured[id] = true
	return nil
}

func (m *mockCredentials) Get(_ string) (domain.CredentialFields, bool) {
	return nil, false
}

func (m *mockCredentials) Has(id string) bool {
	return m.configured[id]
}

func (m *mockCredentials) Clear(id string) {
	delete(m.configured, id)
}

func (m *mockCredentials) ClearAll() {
	m.configured = make(map[string]bool)
}

func (m *mockCredentials) ConfiguredProviders() []string {
	var ids []string
	for id := range m.configured {
		ids = append(ids, id)
	}
	return ids
}

func (m *mockCredentials) Export(_ context.Context) map[string]domain.CredentialFields {
	return map[string]domain.CredentialFields{}
}

func (m *mockCredentials) LoadFromEnv(_ context.Context, _ []string, _ func(string) (string, bool)) []string {
	return nil
}

func testRegistry() *mockRegistry {
	return &mockRegistry{
		providers: []domain.ProviderDescriptor{{
			ID:     "openai",
			Name:   "OpenAI",
			Models: []string{"gpt-4o", "gpt-4o-mini"},
			CredentialFields: []domain.CredentialField{
				{Name: "api_key", Type: domain.FieldSecret, Required: true},
			},
		}},
		embedding: []domain.EmbeddingProviderDescriptor{{
			ID:   "openai",
			Name: "OpenAI",
			Models: []domain.EmbeddingModel{
				{ID: "text-embedding-3-small", Dimensions: 1536, MaxInput: 8191},
			},
		}},
	}
}
