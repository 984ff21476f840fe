// Package openai provides a generation driver for OpenAI, Azure OpenAI and
// OpenAI-compatible chat completion APIs.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.GenerationProvider = (*Provider)(nil)

// Default configuration values.
const (
	DriverName             = "openai"
	DefaultTimeout         = 120 * time.Second
	DefaultAzureAPIVersion = "2024-02-15-preview"
)

// Credential field names read by this driver.
const (
	fieldAPIKey     = "api_key"
	fieldBaseURL    = "base_url"
	fieldEndpoint   = "endpoint"
	fieldAPIVersion = "api_version"
)

// Provider builds chat completion clients.
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

// NewProvider creates the OpenAI generation driver.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{httpClient: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the driver name.
func (p *Provider) Name() string { return DriverName }

// Connect builds a client from the session's credentials. Providers that
// require an endpoint are addressed as Azure deployments.
func (p *Provider) Connect(cfg driven.GenerationConfig) (driven.GenerationClient, error) {
	config, err := ClientConfig(cfg.Provider.RequiresEndpoint, cfg.Provider.DefaultBaseURL, cfg.Credentials)
	if err != nil {
		return nil, err
	}
	config.HTTPClient = p.httpClient
	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		params: cfg.Params,
	}, nil
}

// ClientConfig maps credential fields onto a go-openai configuration.
// Azure deployments are addressed through the endpoint field.
func ClientConfig(azure bool, defaultBaseURL string, creds domain.CredentialFields) (openai.ClientConfig, error) {
	apiKey := creds[fieldAPIKey]
	if azure {
		endpoint := creds[fieldEndpoint]
		if endpoint == "" {
			return openai.ClientConfig{}, errors.New("openai: endpoint is required for azure deployments")
		}
		config := openai.DefaultAzureConfig(apiKey, endpoint)
		config.APIVersion = DefaultAzureAPIVersion
		if v := creds[fieldAPIVersion]; v != "" {
			config.APIVersion = v
		}
		return config, nil
	}

	config := openai.DefaultConfig(apiKey)
	if base := creds[fieldBaseURL]; base != "" {
		config.BaseURL = base
	} else if defaultBaseURL != "" {
		config.BaseURL = defaultBaseURL
	}
	return config, nil
}

// Client sends prompts to one model with fixed parameters.
type Client struct {
	client *openai.Client
	model  string
	params domain.GenerationParams
}

// Generate sends one user message and returns the first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(c.params.Temperature),
		MaxTokens:   c.params.MaxTokens,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no response choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Close releases resources. The shared HTTP client needs no cleanup.
func (c *Client) Close() error {
	return nil
}
