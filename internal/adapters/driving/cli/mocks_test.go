package cli

import (
	"bytes"
	"context"
	"sort"
	"testing"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// mockRegistry is a mock implementation of driving.ProviderRegistry.
type mockRegistry struct {
	providers  []domain.ProviderDescriptor
	embedding  []domain.EmbeddingProviderDescriptor
	degraded   bool
	refreshErr error
	refreshes  int
	deleteErr  error
	// deleted records "generation:id" or "embedding:id" per delete call.
	deleted []string
}

func (m *mockRegistry) ListProviders(_ context.Context) []domain.ProviderDescriptor {
	return m.providers
}

func (m *mockRegistry) GetProvider(_ context.Context, id string) (domain.ProviderDescriptor, error) {
	for _, p := range m.providers {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.ProviderDescriptor{}, domain.NewOpError(domain.ErrUnknownProvider, "get provider", id, "", domain.ErrNotFound)
}

func (m *mockRegistry) ListEmbeddingProviders(_ context.Context) []domain.EmbeddingProviderDescriptor {
	return m.embedding
}

func (m *mockRegistry) GetEmbeddingProvider(_ context.Context, id string) (domain.EmbeddingProviderDescriptor, error) {
	for _, p := range m.embedding {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.EmbeddingProviderDescriptor{}, domain.NewOpError(domain.ErrUnknownProvider, "get embedding provider", id, "", domain.ErrNotFound)
}

func (m *mockRegistry) Refresh(_ context.Context) error {
	m.refreshes++
	return m.refreshErr
}

func (m *mockRegistry) UpsertProvider(_ context.Context, _ domain.ProviderRecord) error {
	return nil
}

func (m *mockRegistry) UpsertEmbeddingProvider(_ context.Context, _ domain.EmbeddingProviderRecord) error {
	return nil
}

func (m *mockRegistry) DeleteProvider(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, err := m.GetProvider(context.Background(), id); err != nil {
		return err
	}
	m.deleted = append(m.deleted, "generation:"+id)
	return nil
}

func (m *mockRegistry) DeleteEmbeddingProvider(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, err := m.GetEmbeddingProvider(context.Background(), id); err != nil {
		return err
	}
	m.deleted = append(m.deleted, "embedding:"+id)
	return nil
}

func (m *mockRegistry) Degraded(_ context.Context) bool {
	return m.degraded
}

// mockCredentials is a mock implementation of driving.CredentialService.
type mockCredentials struct {
	creds map[string]domain.CredentialFields
	// envLoaded is returned by LoadFromEnv for ids it was asked about.
	envLoaded map[string]bool
	setErr    error
}

func newMockCredentials() *mockCredentials {
	return &mockCredentials{
		creds:     make(map[string]domain.CredentialFields),
		envLoaded: make(map[string]bool),
	}
}

func (m *mockCredentials) Set(_ context.Context, id string, fields domain.CredentialFields) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.creds[id] = fields.Clone()
	return nil
}

func (m *mockCredentials) Get(id string) (domain.CredentialFields, bool) {
	f, ok := m.creds[id]
	return f.Clone(), ok
}

func (m *mockCredentials) Has(id string) bool {
	_, ok := m.creds[id]
	return ok
}

func (m *mockCredentials) Clear(id string) {
	delete(m.creds, id)
}

func (m *mockCredentials) ClearAll() {
	m.creds = make(map[string]domain.CredentialFields)
}

func (m *mockCredentials) ConfiguredProviders() []string {
	ids := make([]string, 0, len(m.creds))
	for id := range m.creds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *mockCredentials) Export(_ context.Context) map[string]domain.CredentialFields {
	return map[string]domain.CredentialFields{}
}

func (m *mockCredentials) LoadFromEnv(_ context.Context, ids []string, _ func(string) (string, bool)) []string {
	var loaded []string
	for _, id := range ids {
		if m.envLoaded[id] {
			m.creds[id] = domain.CredentialFields{"api_key": "from-env"}
			loaded = append(loaded, id)
		}
	}
	return loaded
}

// mockAssistant is a mock implementation of driving.AssistantService.
type mockAssistant struct {
	answer   *domain.Answer
	buildErr error
	askErr   error

	builds  []driving.BuildRequest
	asks    []driving.AskRequest
	removed []string
}

func (m *mockAssistant) BuildRetriever(_ context.Context, req driving.BuildRequest) (string, error) {
	m.builds = append(m.builds, req)
	if m.buildErr != nil {
		return "", m.buildErr
	}
	return "ret-1", nil
}

func (m *mockAssistant) Ask(_ context.Context, req driving.AskRequest) (*domain.Answer, error) {
	m.asks = append(m.asks, req)
	if m.askErr != nil {
		return nil, m.askErr
	}
	return m.answer, nil
}

func (m *mockAssistant) Retriever(id string) (domain.RetrieverInfo, error) {
	if len(m.builds) == 0 {
		return domain.RetrieverInfo{}, domain.ErrNotFound
	}
	last := m.builds[len(m.builds)-1]
	return domain.RetrieverInfo{
		ID:        id,
		State:     domain.RetrieverReady,
		Sources:   last.SourcePaths,
		Chunks:    5,
		Signature: domain.EmbeddingSignature{ProviderID: last.EmbeddingProvider, ModelID: last.EmbeddingModel},
	}, nil
}

func (m *mockAssistant) UpdateRetriever(_ string, _ domain.RetrieverParams) error {
	return nil
}

func (m *mockAssistant) RebuildRetriever(_ context.Context, _ string) error {
	return nil
}

func (m *mockAssistant) RemoveRetriever(id string) {
	m.removed = append(m.removed, id)
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error
	setErr      error
	saved       int
}

func newMockSettings() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings()}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	m.saved++
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func (m *mockSettingsService) SetRegistryBackend(backend domain.RegistryBackend, redisAddr string) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.settings.Registry.Backend = backend
	m.settings.Registry.RedisAddr = redisAddr
	return nil
}

func (m *mockSettingsService) SetIngest(chunkSize, overlap int) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.settings.Ingest.ChunkSize = chunkSize
	m.settings.Ingest.Overlap = overlap
	return nil
}

func testRegistry() *mockRegistry {
	return &mockRegistry{
		providers: []domain.ProviderDescriptor{
			{
				ID:     "ollama",
				Name:   "Ollama",
				Models: []string{"llama3"},
				CredentialFields: []domain.CredentialField{
					{Name: "base_url", Type: domain.FieldURL, Env: "OLLAMA_BASE_URL"},
				},
				DefaultBaseURL: "http://localhost:11434",
				Capabilities:   domain.ProviderCapabilities{CustomModels: true},
			},
			{
				ID:     "openai",
				Name:   "OpenAI",
				Models: []string{"gpt-4o", "gpt-4o-mini"},
				CredentialFields: []domain.CredentialField{
					{Name: "api_key", Type: domain.FieldSecret, Required: true, Env: "OPENAI_API_KEY"},
				},
			},
		},
		embedding: []domain.EmbeddingProviderDescriptor{{
			ID:   "openai",
			Name: "OpenAI",
			CredentialFields: []domain.CredentialField{
				{Name: "api_key", Type: domain.FieldSecret, Required: true, Env: "OPENAI_API_KEY"},
			},
			Models: []domain.EmbeddingModel{
				{ID: "text-embedding-3-small", Dimensions: 1536, MaxInput: 8191},
			},
			Capabilities: domain.EmbeddingCapabilities{Batch: true},
		}},
	}
}

// withDeps installs deps for the duration of the test.
func withDeps(t *testing.T, deps Dependencies) {
	t.Helper()
	SetDependencies(deps)
	t.Cleanup(func() { SetDependencies(Dependencies{}) })
}

// runCommand invokes a command's RunE directly with captured output, so
// flag state from other tests does not leak in.
func runCommand(t *testing.T, cmd *cobra.Command, input string, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(bytes.NewBufferString(input))
	cmd.SetContext(context.Background())
	t.Cleanup(func() {
		cmd.SetOut(nil)
		cmd.SetErr(nil)
		cmd.SetIn(nil)
	})
	err := cmd.RunE(cmd, args)
	return buf.String(), err
}
