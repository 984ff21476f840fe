package services

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

var (
	gardenParagraph    = strings.Repeat("Gardeners water tomatoes early in summer. ", 10)
	orchestraParagraph = strings.Repeat("The xylophone orchestra rehearses at dawn. ", 10)
)

type assistantFixture struct {
	emb       *embeddingFixture
	gen       *mockGenerationProvider
	models    *ModelFactory
	extractor *mockExtractor
	assistant *Assistant
}

func newAssistantFixture(t *testing.T) *assistantFixture {
	t.Helper()
	emb := newEmbeddingFixture(t, true, nil)
	gen := &mockGenerationProvider{name: "openai"}
	models := NewModelFactory(emb.registry, []driven.GenerationProvider{gen}, FactoryConfig{MaxHandles: 8})
	engine := NewRAGQueryEngine(models, emb.factory, newMockPromptStore(), nil, RAGConfig{})

	session := NewSession(emb.registry)
	require.NoError(t, session.Credentials().Set(context.Background(), "acme",
		domain.CredentialFields{"api_key": "sk-session-secret"}))

	extractor := &mockExtractor{docs: map[string]domain.Document{
		"notes.md": {ID: "notes", Title: "notes.md", Content: gardenParagraph + "\n\n" + orchestraParagraph},
		"empty.md": {ID: "empty", Title: "empty.md"},
	}}

	assistant := NewAssistant(session, AssistantDeps{
		Registry:   emb.registry,
		Models:     models,
		Embeddings: emb.factory,
		Pipeline:   newTestPipeline(t, emb, PipelineConfig{}),
		Engine:     engine,
		Extractor:  extractor,
	})
	return &assistantFixture{emb: emb, gen: gen, models: models, extractor: extractor, assistant: assistant}
}

func buildNotes(t *testing.T, fx *assistantFixture, paths ...string) string {
	t.Helper()
	if len(paths) == 0 {
		paths = []string{"notes.md"}
	}
	id, err := fx.assistant.BuildRetriever(context.Background(), driving.BuildRequest{
		SourcePaths:       paths,
		ChunkSize:         500,
		Overlap:           100,
		EmbeddingProvider: "acme",
		EmbeddingModel:    "acme-embed",
	})
	require.NoError(t, err)
	return id
}

func askAcme(id, question string) driving.AskRequest {
	return driving.AskRequest{
		RetrieverID: id,
		Question:    question,
		K:           2,
		Provider:    "acme",
		Model:       "acme-large",
		Temperature: 0.1,
	}
}

func TestAssistant_BuildAndAsk(t *testing.T) {
	fx := newAssistantFixture(t)
	ctx := context.Background()

	id := buildNotes(t, fx)
	info, err := fx.assistant.Retriever(id)
	require.NoError(t, err)
	assert.Equal(t, domain.RetrieverReady, info.State)
	assert.Equal(t, []string{"notes.md"}, info.Sources)
	assert.Greater(t, info.Chunks, 1)
	assert.Equal(t, domain.EmbeddingSignature{ProviderID: "acme", ModelID: "acme-embed"}, info.Signature)
	assert.False(t, info.BuiltAt.IsZero())

	answer, err := fx.assistant.Ask(ctx, askAcme(id, "When does the xylophone orchestra rehearse?"))
	require.NoError(t, err)
	assert.Equal(t, "generated answer", answer.Text)
	require.Len(t, answer.Sources, 2)
	assert.Contains(t, answer.Sources[0].Chunk.Text, "xylophone")
	assert.GreaterOrEqual(t, answer.Sources[0].Score, answer.Sources[1].Score)

	prompt := fx.gen.clients[0].lastPrompt()
	assert.Contains(t, prompt, "[1] notes.md:")
	assert.Contains(t, prompt, "Question: When does the xylophone orchestra rehearse?")

	cfg := fx.gen.lastConfig()
	assert.InDelta(t, 0.1, cfg.Params.Temperature, 1e-9)
	assert.Equal(t, "sk-session-secret", cfg.Credentials["api_key"])
}

func TestAssistant_BuildValidation(t *testing.T) {
	fx := newAssistantFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     driving.BuildRequest
		wantErr error
	}{
		{
			name:    "no sources",
			req:     driving.BuildRequest{ChunkSize: 500, Overlap: 100, EmbeddingProvider: "acme", EmbeddingModel: "acme-embed"},
			wantErr: domain.ErrConfiguration,
		},
		{
			name: "overlap too large",
			req: driving.BuildRequest{SourcePaths: []string{"notes.md"}, ChunkSize: 100, Overlap: 100,
				EmbeddingProvider: "acme", EmbeddingModel: "acme-embed"},
			wantErr: domain.ErrConfiguration,
		},
		{
			name: "missing file",
			req: driving.BuildRequest{SourcePaths: []string{"notes.md", "missing.md"}, ChunkSize: 500, Overlap: 100,
				EmbeddingProvider: "acme", EmbeddingModel: "acme-embed"},
			wantErr: domain.ErrNotFound,
		},
		{
			name: "unknown embedding model",
			req: driving.BuildRequest{SourcePaths: []string{"notes.md"}, ChunkSize: 500, Overlap: 100,
				EmbeddingProvider: "acme", EmbeddingModel: "nope"},
			wantErr: domain.ErrUnknownModel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := fx.assistant.BuildRetriever(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, id)
		})
	}
	assert.Empty(t, fx.assistant.Retrievers(), "failed builds register nothing")
}

func TestAssistant_AskValidation(t *testing.T) {
	fx := newAssistantFixture(t)
	id := buildNotes(t, fx)
	ctx := context.Background()

	blank := askAcme(id, "   ")
	_, err := fx.assistant.Ask(ctx, blank)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	zeroK := askAcme(id, "question")
	zeroK.K = 0
	_, err = fx.assistant.Ask(ctx, zeroK)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	unknownModel := askAcme(id, "question")
	unknownModel.Model = "acme-giant"
	_, err = fx.assistant.Ask(ctx, unknownModel)
	assert.ErrorIs(t, err, domain.ErrUnknownModel)

	assert.Zero(t, fx.gen.connects.Load())
}

func TestAssistant_StaleUntilRebuilt(t *testing.T) {
	fx := newAssistantFixture(t)
	ctx := context.Background()
	id := buildNotes(t, fx)

	require.NoError(t, fx.assistant.UpdateRetriever(id, acmeParams(400, 50)))
	info, err := fx.assistant.Retriever(id)
	require.NoError(t, err)
	assert.Equal(t, domain.RetrieverStale, info.State)
	assert.Equal(t, 400, info.Params.ChunkSize)

	_, err = fx.assistant.Ask(ctx, askAcme(id, "When does the orchestra rehearse?"))
	assert.ErrorIs(t, err, domain.ErrStaleIndex)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Zero(t, fx.gen.connects.Load(), "stale retrievers never reach the model")

	require.NoError(t, fx.assistant.RebuildRetriever(ctx, id))
	info, err = fx.assistant.Retriever(id)
	require.NoError(t, err)
	assert.Equal(t, domain.RetrieverReady, info.State)

	_, err = fx.assistant.Ask(ctx, askAcme(id, "When does the orchestra rehearse?"))
	assert.NoError(t, err)
}

func TestAssistant_UpdateSameParamsStaysReady(t *testing.T) {
	fx := newAssistantFixture(t)
	id := buildNotes(t, fx)

	require.NoError(t, fx.assistant.UpdateRetriever(id, acmeParams(500, 100)))
	info, err := fx.assistant.Retriever(id)
	require.NoError(t, err)
	assert.Equal(t, domain.RetrieverReady, info.State)

	err = fx.assistant.UpdateRetriever(id, acmeParams(100, 200))
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	info, err = fx.assistant.Retriever(id)
	require.NoError(t, err)
	assert.Equal(t, domain.RetrieverReady, info.State, "invalid params leave the retriever untouched")
}

func TestAssistant_NoContextPrompt(t *testing.T) {
	fx := newAssistantFixture(t)
	id := buildNotes(t, fx, "empty.md")

	answer, err := fx.assistant.Ask(context.Background(), askAcme(id, "What is in the notes?"))
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.NotNil(t, answer.Sources)
	assert.Contains(t, fx.gen.clients[0].lastPrompt(), "No context was found")
	assert.Zero(t, fx.emb.driver.batchCalls.Load(), "empty index skips the question embedding")
}

func TestAssistant_UnknownRetriever(t *testing.T) {
	fx := newAssistantFixture(t)
	ctx := context.Background()

	_, err := fx.assistant.Ask(ctx, askAcme("nope", "question"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = fx.assistant.Retriever("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, fx.assistant.UpdateRetriever("nope", acmeParams(500, 100)), domain.ErrNotFound)
	assert.ErrorIs(t, fx.assistant.RebuildRetriever(ctx, "nope"), domain.ErrNotFound)
}

func TestAssistant_RemoveRetriever(t *testing.T) {
	fx := newAssistantFixture(t)
	id := buildNotes(t, fx)
	require.Len(t, fx.assistant.Retrievers(), 1)

	fx.assistant.RemoveRetriever(id)
	assert.Empty(t, fx.assistant.Retrievers())
	_, err := fx.assistant.Retriever(id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAssistant_Close(t *testing.T) {
	fx := newAssistantFixture(t)
	ctx := context.Background()
	id := buildNotes(t, fx)
	_, err := fx.assistant.Ask(ctx, askAcme(id, "When does the orchestra rehearse?"))
	require.NoError(t, err)
	require.Equal(t, 1, fx.models.Len())
	require.Equal(t, 1, fx.emb.factory.Len())

	fx.assistant.Close()

	assert.True(t, fx.assistant.Session().Closed())
	assert.Empty(t, fx.assistant.Session().Credentials().ConfiguredProviders())
	assert.Zero(t, fx.models.Len(), "session handles are released")
	assert.Zero(t, fx.emb.factory.Len())
	assert.True(t, fx.gen.clients[0].closed.Load())
	assert.Empty(t, fx.assistant.Retrievers())

	_, err = fx.assistant.BuildRetriever(ctx, driving.BuildRequest{SourcePaths: []string{"notes.md"},
		ChunkSize: 500, Overlap: 100, EmbeddingProvider: "acme", EmbeddingModel: "acme-embed"})
	assert.ErrorIs(t, err, domain.ErrClosed)
}

func TestAssistant_SessionsAreIsolated(t *testing.T) {
	fx := newAssistantFixture(t)
	ctx := context.Background()
	id := buildNotes(t, fx)

	other := NewAssistant(NewSession(fx.emb.registry), fx.assistant.deps)
	_, err := other.Ask(ctx, askAcme(id, "question"))
	assert.ErrorIs(t, err, domain.ErrNotFound, "retrievers are per session")

	_, err = other.BuildRetriever(ctx, driving.BuildRequest{SourcePaths: []string{"notes.md"},
		ChunkSize: 500, Overlap: 100, EmbeddingProvider: "acme", EmbeddingModel: "acme-embed"})
	assert.ErrorIs(t, err, domain.ErrConfiguration, "credentials are per session")
}

func TestAssistant_FailedRebuildKeepsReadyIndex(t *testing.T) {
	fx := newAssistantFixture(t)
	ctx := context.Background()
	id := buildNotes(t, fx)

	fx.emb.driver.embedErr = errUpstream
	err := fx.assistant.RebuildRetriever(ctx, id)
	assert.ErrorIs(t, err, domain.ErrEmbedding)

	info, err := fx.assistant.Retriever(id)
	require.NoError(t, err)
	assert.Equal(t, domain.RetrieverReady, info.State, "unchanged params keep the previous index usable")
	assert.Greater(t, info.Chunks, 1)

	fx.emb.driver.embedErr = nil
	answer, err := fx.assistant.Ask(ctx, askAcme(id, "When does the xylophone orchestra rehearse?"))
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Sources)
}

func TestAssistant_FailedRebuildAfterUpdateStaysStale(t *testing.T) {
	fx := newAssistantFixture(t)
	ctx := context.Background()
	id := buildNotes(t, fx)

	require.NoError(t, fx.assistant.UpdateRetriever(id, acmeParams(400, 50)))
	fx.emb.driver.embedErr = errUpstream
	assert.Error(t, fx.assistant.RebuildRetriever(ctx, id))

	info, err := fx.assistant.Retriever(id)
	require.NoError(t, err)
	assert.Equal(t, domain.RetrieverStale, info.State)

	fx.emb.driver.embedErr = nil
	_, err = fx.assistant.Ask(ctx, askAcme(id, "When does the orchestra rehearse?"))
	assert.ErrorIs(t, err, domain.ErrStaleIndex)
}

// paragraphTopics embeds a text by which of the two notes paragraphs it is
// about, the way a semantic model would: gardening words on one axis, the
// orchestra and any mention of the second paragraph on another.
func paragraphTopics(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		switch strings.Trim(w, ".?!,") {
		case "gardeners", "water", "tomatoes", "summer":
			vec[0]++
		case "xylophone", "orchestra", "rehearses", "dawn", "second":
			vec[1]++
		}
	}
	norm := math.Sqrt(float64(vec[0]*vec[0] + vec[1]*vec[1]))
	if norm == 0 {
		vec[2] = 1
		return vec
	}
	vec[0] /= float32(norm)
	vec[1] /= float32(norm)
	return vec
}

func TestAssistant_AskAboutSecondParagraph(t *testing.T) {
	fx := newAssistantFixture(t)
	fx.emb.driver.embed = paragraphTopics
	ctx := context.Background()

	id, err := fx.assistant.BuildRetriever(ctx, driving.BuildRequest{
		SourcePaths:       []string{"notes.md"},
		ChunkSize:         200,
		Overlap:           40,
		EmbeddingProvider: "acme",
		EmbeddingModel:    "acme-embed",
	})
	require.NoError(t, err)

	answer, err := fx.assistant.Ask(ctx, askAcme(id, "What is discussed in the second paragraph?"))
	require.NoError(t, err)
	require.Len(t, answer.Sources, 2)

	secondStart := len(gardenParagraph) + len("\n\n")
	for _, src := range answer.Sources {
		assert.GreaterOrEqual(t, src.Chunk.Start, secondStart, "chunk %q is from the first paragraph", src.Chunk.Text)
		assert.Contains(t, src.Chunk.Text, "orchestra")
	}
}
