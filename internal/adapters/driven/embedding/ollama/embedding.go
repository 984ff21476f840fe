// Package ollama provides an embedding driver for a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ollamallm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// Default configuration values.
const (
	DriverName     = "ollama"
	DefaultTimeout = 30 * time.Second
)

// Provider builds embedding clients.
type Provider struct {
	httpClient *http.Client
}

// Option configures the provider.
type Option func(*Provider)

// WithHTTPClient replaces the HTTP client used by every connection.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// NewProvider creates the Ollama embedding driver.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{httpClient: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the driver name.
func (p *Provider) Name() string { return DriverName }

// Connect builds a client for the model.
func (p *Provider) Connect(cfg driven.EmbeddingConfig) (driven.EmbeddingClient, error) {
	return &Client{
		http:    p.httpClient,
		baseURL: ollamallm.BaseURL(cfg.Credentials["base_url"], cfg.Provider.DefaultBaseURL),
		model:   cfg.Model.ID,
	}, nil
}

// embeddingRequest is the /api/embeddings request format.
type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// embeddingResponse is the /api/embeddings response format.
type embeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// embedRequest is the /api/embed request format, which accepts many inputs.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the /api/embed response format.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Client embeds text with one local model.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
}

// Embed generates a vector embedding for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embeddingResponse
	if err := c.post(ctx, "/api/embeddings", embeddingRequest{Model: c.model, Prompt: text}, &resp); err != nil {
		return nil, err
	}

	embedding := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// EmbedBatch embeds every text in one /api/embed request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embedResponse
	if err := c.post(ctx, "/api/embed", embedRequest{Model: c.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
	}
	return resp.Embeddings, nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, out any) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}
