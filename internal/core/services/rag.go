package services

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// DefaultMaxContextTokens bounds the rendered prompt.
const DefaultMaxContextTokens = 6000

// RAGConfig configures the query engine.
type RAGConfig struct {
	// MaxContextTokens bounds the rendered prompt. Zero takes the default.
	MaxContextTokens int
}

// QueryRequest is one grounded question against an index.
type QueryRequest struct {
	Index    driven.VectorIndex
	Question string
	K        int
	Embedder *EmbeddingHandle
	Model    *ModelHandle

	// Titles maps document ids to display names for passage labels.
	Titles map[string]string
}

// promptPassage is one numbered passage as seen by prompt templates.
type promptPassage struct {
	Number int
	Source string
	Text   string
}

// promptData is the data passed to prompt templates.
type promptData struct {
	Question string
	Passages []promptPassage
}

// RAGQueryEngine answers questions from retrieved passages.
type RAGQueryEngine struct {
	models     *ModelFactory
	embeddings *EmbeddingFactory
	prompts    driven.PromptStore
	counter    driven.TokenCounter
	maxTokens  int
}

// NewRAGQueryEngine creates an engine. A nil counter disables context budgeting.
func NewRAGQueryEngine(models *ModelFactory, embeddings *EmbeddingFactory, prompts driven.PromptStore,
	counter driven.TokenCounter, cfg RAGConfig) *RAGQueryEngine {
	if cfg.MaxContextTokens <= 0 {
		cfg.MaxContextTokens = DefaultMaxContextTokens
	}
	return &RAGQueryEngine{
		models:     models,
		embeddings: embeddings,
		prompts:    prompts,
		counter:    counter,
		maxTokens:  cfg.MaxContextTokens,
	}
}

// Query embeds the question, retrieves the top k passages, and asks the
// model to answer from them alone. An index built with a different
// embedding model is rejected before any upstream call. When nothing is
// retrieved the model is still asked, with a prompt stating that no
// context was found.
func (e *RAGQueryEngine) Query(ctx context.Context, req QueryRequest) (*domain.Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("rag: %w: question must not be empty", domain.ErrConfiguration)
	}
	if req.K <= 0 {
		return nil, fmt.Errorf("rag: %w: k must be positive, got %d", domain.ErrConfiguration, req.K)
	}
	if req.Index == nil || req.Embedder == nil || req.Model == nil {
		return nil, fmt.Errorf("rag: %w: index, embedder and model are required", domain.ErrConfiguration)
	}

	var passages domain.RetrievalResult
	if sig, ok := req.Index.EmbeddingSignature(); ok {
		want := req.Embedder.Signature()
		if sig != want {
			return nil, domain.NewOpError(domain.ErrSignatureMismatch, "query", want.ProviderID, want.ModelID,
				fmt.Errorf("index was built with %s; rebuild it or query with that model", sig))
		}

		vectors, err := e.embeddings.Embed(ctx, req.Embedder, []string{question})
		if err != nil {
			return nil, err
		}
		if passages, err = req.Index.Query(vectors[0].Values, req.K); err != nil {
			return nil, fmt.Errorf("rag: retrieve: %w", err)
		}
	}

	prompt, used, err := e.compose(question, passages, req.Titles)
	if err != nil {
		return nil, err
	}
	logger.Debug("asking %s/%s with %d of %d passages", req.Model.Provider(), req.Model.Model(), len(used), len(passages))

	text, err := e.models.Invoke(ctx, req.Model, prompt)
	if err != nil {
		return nil, err
	}
	return &domain.Answer{Text: strings.TrimSpace(text), Sources: used}, nil
}

// compose renders the prompt, dropping the lowest scoring passages until
// it fits the token budget. The top passage is kept, truncated if needed.
func (e *RAGQueryEngine) compose(question string, passages domain.RetrievalResult,
	titles map[string]string) (string, []domain.ScoredChunk, error) {
	if len(passages) == 0 {
		prompt, err := e.render(driven.PromptRAGNoContext, promptData{Question: question})
		return prompt, []domain.ScoredChunk{}, err
	}

	tmpl, err := e.template(driven.PromptRAGAnswer)
	if err != nil {
		return "", nil, err
	}

	data := promptData{Question: question, Passages: make([]promptPassage, len(passages))}
	for i, p := range passages {
		source := titles[p.Chunk.DocumentID]
		if source == "" {
			source = p.Chunk.DocumentID
		}
		data.Passages[i] = promptPassage{Number: i + 1, Source: source, Text: p.Chunk.Text}
	}

	prompt, err := execute(tmpl, data)
	if err != nil || e.counter == nil {
		return prompt, passages, err
	}

	for e.counter.Count(prompt) > e.maxTokens && len(data.Passages) > 1 {
		data.Passages = data.Passages[:len(data.Passages)-1]
		if prompt, err = execute(tmpl, data); err != nil {
			return "", nil, err
		}
	}

	if over := e.counter.Count(prompt) - e.maxTokens; over > 0 {
		top := &data.Passages[0]
		keep := e.counter.Count(top.Text) - over
		if keep <= 0 {
			return "", nil, fmt.Errorf("rag: %w: question does not fit in %d context tokens",
				domain.ErrConfiguration, e.maxTokens)
		}
		top.Text = e.counter.Truncate(top.Text, keep)
		if prompt, err = execute(tmpl, data); err != nil {
			return "", nil, err
		}
	}

	if dropped := len(passages) - len(data.Passages); dropped > 0 {
		logger.Debug("dropped %d passages to fit %d context tokens", dropped, e.maxTokens)
	}
	return prompt, passages[:len(data.Passages)], nil
}

func (e *RAGQueryEngine) render(name string, data promptData) (string, error) {
	tmpl, err := e.template(name)
	if err != nil {
		return "", err
	}
	return execute(tmpl, data)
}

func (e *RAGQueryEngine) template(name string) (*template.Template, error) {
	text, err := e.prompts.Load(name)
	if err != nil {
		return nil, fmt.Errorf("rag: %w: load prompt %s: %w", domain.ErrConfiguration, name, err)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("rag: %w: parse prompt %s: %w", domain.ErrConfiguration, name, err)
	}
	return tmpl, nil
}

func execute(tmpl *template.Template, data promptData) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rag: %w: render prompt %s: %w", domain.ErrConfiguration, tmpl.Name(), err)
	}
	return b.String(), nil
}
