// Package ai assembles the generation and embedding drivers offered to the
// model factories.
package ai

import (
	"net/http"

	ollamaembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/docqa/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/anthropic"
	ollamallm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/docqa/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Options tune the HTTP transport shared by the drivers.
type Options struct {
	// HTTPClient replaces each driver's default client. Nil keeps the
	// per-driver defaults and their timeouts.
	HTTPClient *http.Client
}

// GenerationDrivers returns every available generation driver.
// Registry descriptors select one by driver name.
func GenerationDrivers(opts Options) []driven.GenerationProvider {
	if opts.HTTPClient != nil {
		return []driven.GenerationProvider{
			openaillm.NewProvider(openaillm.WithHTTPClient(opts.HTTPClient)),
			anthropicllm.NewProvider(anthropicllm.WithHTTPClient(opts.HTTPClient)),
			ollamallm.NewProvider(ollamallm.WithHTTPClient(opts.HTTPClient)),
		}
	}
	return []driven.GenerationProvider{
		openaillm.NewProvider(),
		anthropicllm.NewProvider(),
		ollamallm.NewProvider(),
	}
}

// EmbeddingDrivers returns every available embedding driver.
func EmbeddingDrivers(opts Options) []driven.EmbeddingProvider {
	if opts.HTTPClient != nil {
		return []driven.EmbeddingProvider{
			openaiembed.NewProvider(openaiembed.WithHTTPClient(opts.HTTPClient)),
			ollamaembed.NewProvider(ollamaembed.WithHTTPClient(opts.HTTPClient)),
		}
	}
	return []driven.EmbeddingProvider{
		openaiembed.NewProvider(),
		ollamaembed.NewProvider(),
	}
}
