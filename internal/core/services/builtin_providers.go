package services

import "github.com/custodia-labs/docqa/internal/core/domain"

// Driver names for the backend implementations.
const (
	DriverOpenAI    = "openai"
	DriverAnthropic = "anthropic"
	DriverOllama    = "ollama"
)

// DefaultOllamaURL is where a local Ollama server listens.
const DefaultOllamaURL = "http://localhost:11434"

func apiKeyField(env string) domain.CredentialField {
	return domain.CredentialField{Name: "api_key", Type: domain.FieldSecret, Required: true, Env: env}
}

func baseURLField(env string) domain.CredentialField {
	return domain.CredentialField{Name: "base_url", Type: domain.FieldURL, Env: env}
}

// BuiltinProviders is the minimal generation catalog served when the
// registry store is empty or unavailable.
func BuiltinProviders() []domain.ProviderDescriptor {
	return []domain.ProviderDescriptor{
		{
			ID:               "anthropic",
			Name:             "Anthropic",
			Driver:           DriverAnthropic,
			CredentialFields: []domain.CredentialField{apiKeyField("ANTHROPIC_API_KEY")},
			Models: []string{
				"claude-3-5-sonnet-20241022",
				"claude-3-opus-20240229",
				"claude-3-sonnet-20240229",
				"claude-3-haiku-20240307",
			},
		},
		{
			ID:               "ollama",
			Name:             "Ollama",
			Driver:           DriverOllama,
			DefaultBaseURL:   DefaultOllamaURL,
			CredentialFields: []domain.CredentialField{baseURLField("OLLAMA_HOST")},
			Models:           []string{"llama3", "mistral", "codellama", "phi3"},
			Capabilities:     domain.ProviderCapabilities{Streaming: true, CustomModels: true},
		},
		{
			ID:     "openai",
			Name:   "OpenAI",
			Driver: DriverOpenAI,
			CredentialFields: []domain.CredentialField{
				apiKeyField("OPENAI_API_KEY"),
				baseURLField("OPENAI_BASE_URL"),
			},
			Models:       []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"},
			Capabilities: domain.ProviderCapabilities{Streaming: true},
		},
	}
}

// BuiltinEmbeddingProviders is the minimal embedding catalog served when
// the registry store is empty or unavailable.
func BuiltinEmbeddingProviders() []domain.EmbeddingProviderDescriptor {
	return []domain.EmbeddingProviderDescriptor{
		{
			ID:               "ollama",
			Name:             "Ollama",
			Driver:           DriverOllama,
			DefaultBaseURL:   DefaultOllamaURL,
			CredentialFields: []domain.CredentialField{baseURLField("OLLAMA_HOST")},
			Models: []domain.EmbeddingModel{
				{ID: "nomic-embed-text", Dimensions: 768, MaxInput: 8192},
				{ID: "mxbai-embed-large", Dimensions: 1024, MaxInput: 512},
				{ID: "all-minilm", Dimensions: 384, MaxInput: 256},
			},
		},
		{
			ID:     "openai",
			Name:   "OpenAI",
			Driver: DriverOpenAI,
			CredentialFields: []domain.CredentialField{
				apiKeyField("OPENAI_API_KEY"),
				baseURLField("OPENAI_BASE_URL"),
			},
			Models: []domain.EmbeddingModel{
				{ID: "text-embedding-3-large", Dimensions: 3072, MaxInput: 8191},
				{ID: "text-embedding-3-small", Dimensions: 1536, MaxInput: 8191},
				{ID: "text-embedding-ada-002", Dimensions: 1536, MaxInput: 8191},
			},
			Capabilities: domain.EmbeddingCapabilities{Batch: true, Concurrent: true},
		},
	}
}

// openAICompatible describes a hosted provider speaking the OpenAI chat API.
func openAICompatible(id, name, baseURL, env string, models ...string) domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		ID:               id,
		Name:             name,
		Driver:           DriverOpenAI,
		DefaultBaseURL:   baseURL,
		CredentialFields: []domain.CredentialField{apiKeyField(env)},
		Models:           models,
		Capabilities:     domain.ProviderCapabilities{Streaming: true},
	}
}

// DefaultCatalog is the seed catalog written by "docqa providers seed".
// It extends the built-in set with hosted OpenAI-compatible providers.
func DefaultCatalog() ([]domain.ProviderRecord, []domain.EmbeddingProviderRecord) {
	providers := BuiltinProviders()
	providers = append(providers,
		domain.ProviderDescriptor{
			ID:     "azure_openai",
			Name:   "Azure OpenAI",
			Driver: DriverOpenAI,
			CredentialFields: []domain.CredentialField{
				apiKeyField("AZURE_OPENAI_API_KEY"),
				{Name: "endpoint", Type: domain.FieldURL, Required: true, Env: "AZURE_OPENAI_ENDPOINT"},
				{Name: "api_version", Type: domain.FieldText, Env: "AZURE_OPENAI_API_VERSION"},
			},
			Capabilities:     domain.ProviderCapabilities{Streaming: true, CustomModels: true},
			RequiresEndpoint: true,
		},
		openAICompatible("deepseek", "DeepSeek", "https://api.deepseek.com/v1", "DEEPSEEK_API_KEY",
			"deepseek-chat", "deepseek-coder"),
		openAICompatible("groq", "Groq", "https://api.groq.com/openai/v1", "GROQ_API_KEY",
			"llama-3.1-70b-versatile", "llama3-70b-8192", "mixtral-8x7b-32768"),
		openAICompatible("mistralai", "Mistral AI", "https://api.mistral.ai/v1", "MISTRAL_API_KEY",
			"mistral-large-latest", "mistral-medium-latest", "mistral-small-latest"),
		openAICompatible("xai", "xAI (Grok)", "https://api.x.ai/v1", "XAI_API_KEY",
			"grok-beta", "grok-vision-beta"),
	)

	records := make([]domain.ProviderRecord, len(providers))
	for i, p := range providers {
		records[i] = domain.RecordFromProvider(p)
	}

	embedding := BuiltinEmbeddingProviders()
	embeddingRecords := make([]domain.EmbeddingProviderRecord, len(embedding))
	for i, p := range embedding {
		embeddingRecords[i] = domain.RecordFromEmbeddingProvider(p)
	}
	return records, embeddingRecords
}
