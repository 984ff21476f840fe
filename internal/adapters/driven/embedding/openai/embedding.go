// Package openai provides an embedding driver for OpenAI and Azure OpenAI.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"

	openaillm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.EmbeddingProvider = (*Provider)(nil)

// Default configuration values.
const (
	DriverName     = "openai"
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

// NewProvider creates the OpenAI embedding driver.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{httpClient: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the driver name.
func (p *Provider) Name() string { return DriverName }

// Connect builds a client. An endpoint credential selects Azure.
func (p *Provider) Connect(cfg driven.EmbeddingConfig) (driven.EmbeddingClient, error) {
	azure := cfg.Credentials["endpoint"] != ""
	config, err := openaillm.ClientConfig(azure, cfg.Provider.DefaultBaseURL, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	config.HTTPClient = p.httpClient
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  openai.EmbeddingModel(cfg.Model.ID),
	}, nil
}

// Client embeds text with one model.
type Client struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

// Embed generates a vector embedding for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds every text in one request. Results are returned in
// input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })
	vectors := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 {
			return nil, errors.New("openai: empty embedding returned")
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}
