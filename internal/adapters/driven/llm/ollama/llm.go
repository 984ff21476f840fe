// Package ollama provides a generation driver for a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// Default configuration values.
const (
	DriverName     = "ollama"
	DefaultBaseURL = "http://localhost:11434"
	DefaultTimeout = 300 * time.Second
)

// Provider builds /api/generate clients.
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

// NewProvider creates the Ollama generation driver.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{httpClient: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the driver name.
func (p *Provider) Name() string { return DriverName }

// Connect builds a client. Ollama needs no credentials; base_url selects
// the server.
func (p *Provider) Connect(cfg driven.GenerationConfig) (driven.GenerationClient, error) {
	return &Client{
		http:    p.httpClient,
		baseURL: BaseURL(cfg.Credentials["base_url"], cfg.Provider.DefaultBaseURL),
		model:   cfg.Model,
		options: &options{
			NumPredict:  cfg.Params.MaxTokens,
			Temperature: cfg.Params.Temperature,
		},
	}, nil
}

// BaseURL picks the configured server, then the descriptor default, then
// the local default.
func BaseURL(configured, fallback string) string {
	for _, u := range []string{configured, fallback} {
		if u != "" {
			return strings.TrimRight(u, "/")
		}
	}
	return DefaultBaseURL
}

// generateRequest is the Ollama /api/generate request format.
type generateRequest struct {
	Model   string   `json:"model"`
	Prompt  string   `json:"prompt"`
	Stream  bool     `json:"stream"`
	Options *options `json:"options,omitempty"`
}

// options holds generation parameters.
type options struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature"`
}

// generateResponse is the Ollama /api/generate response format.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Client sends prompts to one local model.
type Client struct {
	http    *http.Client
	baseURL string
	model   string
	options *options
}

// Generate produces a completion without streaming.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	jsonBody, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.options,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", fmt.Errorf("ollama error (status %d): failed to read response", resp.StatusCode)
		}
		return "", fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if genResp.Error != "" {
		return "", fmt.Errorf("ollama error: %s", genResp.Error)
	}
	return genResp.Response, nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}
