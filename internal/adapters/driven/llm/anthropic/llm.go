// Package anthropic provides a generation driver for the Anthropic
// messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
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
	DriverName       = "anthropic"
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultTimeout   = 120 * time.Second
	DefaultMaxTokens = 1024

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"
)

// Provider builds messages API clients.
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

// NewProvider creates the Anthropic generation driver.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{httpClient: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the driver name.
func (p *Provider) Name() string { return DriverName }

// Connect builds a client. The API key is sent on every request.
func (p *Provider) Connect(cfg driven.GenerationConfig) (driven.GenerationClient, error) {
	apiKey := cfg.Credentials["api_key"]
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	baseURL := cfg.Credentials["base_url"]
	if baseURL == "" {
		baseURL = cfg.Provider.DefaultBaseURL
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxTokens := cfg.Params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	return &Client{
		http:        p.httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Params.Temperature,
	}, nil
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	Temperature float64           `json:"temperature"`
}

// messagesMessage is the Anthropic message format.
type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client sends prompts to one Claude model.
type Client struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
}

// Generate sends one user message and concatenates the text blocks.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := messagesRequest{
		Model:       c.model,
		Messages:    []messagesMessage{{Role: "user", Content: prompt}},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", fmt.Errorf("anthropic error (status %d): decode response: %w", resp.StatusCode, err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, msgResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}

	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	if result.Len() == 0 {
		return "", errors.New("anthropic: no response content returned")
	}
	return result.String(), nil
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}
