package services

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// --- Generation mocks ---

// mockGenerationProvider records every Connect call.
type mockGenerationProvider struct {
	name       string
	connects   atomic.Int32
	connectErr error
	generate   func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	configs []driven.GenerationConfig
	clients []*mockGenerationClient
}

func (m *mockGenerationProvider) Name() string { return m.name }

func (m *mockGenerationProvider) Connect(cfg driven.GenerationConfig) (driven.GenerationClient, error) {
	m.connects.Add(1)
	if m.connectErr != nil {
		return nil, m.connectErr
	}
	c := &mockGenerationClient{generate: m.generate}
	m.mu.Lock()
	m.configs = append(m.configs, cfg)
	m.clients = append(m.clients, c)
	m.mu.Unlock()
	return c, nil
}

func (m *mockGenerationProvider) lastConfig() driven.GenerationConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.configs[len(m.configs)-1]
}

type mockGenerationClient struct {
	generate func(ctx context.Context, prompt string) (string, error)
	closed   atomic.Bool

	mu      sync.Mutex
	prompts []string
}

func (c *mockGenerationClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	c.prompts = append(c.prompts, prompt)
	c.mu.Unlock()
	if c.generate != nil {
		return c.generate(ctx, prompt)
	}
	return "generated answer", nil
}

func (c *mockGenerationClient) Close() error {
	c.closed.Store(true)
	return nil
}

func (c *mockGenerationClient) lastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}

// --- Embedding mocks ---

// mockEmbeddingProvider returns a bag-of-words embedder.
type mockEmbeddingProvider struct {
	name       string
	dims       int
	connects   atomic.Int32
	batchCalls atomic.Int32
	textCalls  atomic.Int32
	inFlight   atomic.Int32
	maxFlight  atomic.Int32
	failAfter  int32
	embedErr   error
	delay      time.Duration
	// embed replaces bagOfWords when set.
	embed func(text string, dims int) []float32

	mu      sync.Mutex
	clients []*mockEmbeddingClient
}

func (m *mockEmbeddingProvider) Name() string { return m.name }

func (m *mockEmbeddingProvider) Connect(_ driven.EmbeddingConfig) (driven.EmbeddingClient, error) {
	m.connects.Add(1)
	c := &mockEmbeddingClient{provider: m}
	m.mu.Lock()
	m.clients = append(m.clients, c)
	m.mu.Unlock()
	return c, nil
}

type mockEmbeddingClient struct {
	provider *mockEmbeddingProvider
	closed   atomic.Bool
}

func (c *mockEmbeddingClient) enter() (func(), error) {
	p := c.provider
	n := p.inFlight.Add(1)
	for {
		peak := p.maxFlight.Load()
		if n <= peak || p.maxFlight.CompareAndSwap(peak, n) {
			break
		}
	}
	calls := p.batchCalls.Load() + p.textCalls.Load()
	time.Sleep(p.delay)
	leave := func() { p.inFlight.Add(-1) }
	if p.embedErr != nil && calls >= p.failAfter {
		return leave, p.embedErr
	}
	return leave, nil
}

func (c *mockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	leave, err := c.enter()
	defer leave()
	c.provider.textCalls.Add(1)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.provider.vector(text), nil
}

func (c *mockEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	leave, err := c.enter()
	defer leave()
	c.provider.batchCalls.Add(1)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = c.provider.vector(t)
	}
	return out, nil
}

func (m *mockEmbeddingProvider) vector(text string) []float32 {
	if m.embed != nil {
		return m.embed(text, m.dims)
	}
	return bagOfWords(text, m.dims)
}

func (c *mockEmbeddingClient) Close() error {
	c.closed.Store(true)
	return nil
}

// bagOfWords hashes lower-cased words into a normalised vector, so texts
// sharing words score higher under cosine similarity.
func bagOfWords(text string, dims int) []float32 {
	vec := make([]float32, dims)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[h.Sum32()%uint32(dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// --- Tokenizer mock ---

// wordCounter counts whitespace-separated words as tokens.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func (wordCounter) Truncate(text string, maxTokens int) string {
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ")
}

// --- Prompt and extractor mocks ---

const (
	testAnswerPrompt = "Answer only from the passages below.\n" +
		"{{range .Passages}}[{{.Number}}] {{.Source}}: {{.Text}}\n{{end}}" +
		"Question: {{.Question}}"
	testNoContextPrompt = "No context was found. Say so. Question: {{.Question}}"
)

// mockPromptStore serves templates from a map.
type mockPromptStore struct {
	prompts map[string]string
}

func newMockPromptStore() *mockPromptStore {
	return &mockPromptStore{prompts: map[string]string{
		driven.PromptRAGAnswer:    testAnswerPrompt,
		driven.PromptRAGNoContext: testNoContextPrompt,
	}}
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// mockExtractor returns documents keyed by path.
type mockExtractor struct {
	docs  map[string]domain.Document
	calls atomic.Int32
}

func (m *mockExtractor) Extract(_ context.Context, path string) (*domain.Document, error) {
	m.calls.Add(1)
	doc, ok := m.docs[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// --- Errors ---

// timeoutError is a net.Error reporting a timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

var errUpstream = errors.New("upstream returned 500")
