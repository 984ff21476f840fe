package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestProvidersList(t *testing.T) {
	t.Run("requires registry", func(t *testing.T) {
		withDeps(t, Dependencies{})
		_, err := runCommand(t, providersListCmd, "")
		assert.ErrorIs(t, err, errRegistryNotConfigured)
	})

	t.Run("lists both kinds with configured flag", func(t *testing.T) {
		creds := newMockCredentials()
		creds.envLoaded["openai"] = true
		withDeps(t, Dependencies{Registry: testRegistry(), Credentials: creds})

		out, err := runCommand(t, providersListCmd, "")
		require.NoError(t, err)

		assert.Contains(t, out, "ID")
		assert.Regexp(t, `ollama\s+generation\s+Ollama\s+llama3\s+no`, out)
		assert.Regexp(t, `openai\s+generation\s+OpenAI\s+gpt-4o, gpt-4o-mini\s+yes`, out)
		assert.Regexp(t, `openai\s+embedding\s+OpenAI\s+text-embedding-3-small\s+yes`, out)
		assert.NotContains(t, out, "from-env", "credential values are never printed")
	})

	t.Run("filters by kind", func(t *testing.T) {
		withDeps(t, Dependencies{Registry: testRegistry()})
		require.NoError(t, providersListCmd.Flags().Set("kind", "embedding"))
		t.Cleanup(func() { _ = providersListCmd.Flags().Set("kind", "") })

		out, err := runCommand(t, providersListCmd, "")
		require.NoError(t, err)
		assert.NotContains(t, out, "generation")
		assert.Contains(t, out, "embedding")
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		withDeps(t, Dependencies{Registry: testRegistry()})
		require.NoError(t, providersListCmd.Flags().Set("kind", "vision"))
		t.Cleanup(func() { _ = providersListCmd.Flags().Set("kind", "") })

		_, err := runCommand(t, providersListCmd, "")
		assert.Error(t, err)
	})

	t.Run("warns when degraded", func(t *testing.T) {
		reg := testRegistry()
		reg.degraded = true
		withDeps(t, Dependencies{Registry: reg})

		out, err := runCommand(t, providersListCmd, "")
		require.NoError(t, err)
		assert.Contains(t, out, "registry store unavailable")
	})
}

func TestProvidersShow(t *testing.T) {
	withDeps(t, Dependencies{Registry: testRegistry()})

	t.Run("shows both kinds", func(t *testing.T) {
		out, err := runCommand(t, providersShowCmd, "", "openai")
		require.NoError(t, err)

		assert.Contains(t, out, "[Generation] OpenAI (openai)")
		assert.Contains(t, out, "[Embedding] OpenAI (openai)")
		assert.Contains(t, out, "api_key (secret, required) from $OPENAI_API_KEY")
		assert.Contains(t, out, "text-embedding-3-small (1536 dims, 8191 max input tokens)")
	})

	t.Run("shows custom model support", func(t *testing.T) {
		out, err := runCommand(t, providersShowCmd, "", "ollama")
		require.NoError(t, err)

		assert.Contains(t, out, "Base URL: http://localhost:11434")
		assert.Contains(t, out, "any model id accepted")
		assert.Contains(t, out, "base_url (url, optional)")
		assert.NotContains(t, out, "[Embedding]")
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := runCommand(t, providersShowCmd, "", "nope")
		assert.ErrorIs(t, err, domain.ErrUnknownProvider)
	})
}

func TestProvidersRefresh(t *testing.T) {
	t.Run("reports counts", func(t *testing.T) {
		reg := testRegistry()
		withDeps(t, Dependencies{Registry: reg})

		out, err := runCommand(t, providersRefreshCmd, "")
		require.NoError(t, err)
		assert.Equal(t, 1, reg.refreshes)
		assert.Contains(t, out, "2 generation, 1 embedding providers")
	})

	t.Run("surfaces store failure", func(t *testing.T) {
		reg := testRegistry()
		reg.refreshErr = domain.ErrRegistryUnavailable
		withDeps(t, Dependencies{Registry: reg})

		_, err := runCommand(t, providersRefreshCmd, "")
		assert.ErrorIs(t, err, domain.ErrRegistryUnavailable)
	})
}

func TestProvidersSeed(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		withDeps(t, Dependencies{Registry: testRegistry()})
		_, err := runCommand(t, providersSeedCmd, "")
		assert.Error(t, err)
	})

	t.Run("writes built-in catalog", func(t *testing.T) {
		store := memory.NewRegistryStore()
		reg := testRegistry()
		withDeps(t, Dependencies{Registry: reg, Store: store})

		out, err := runCommand(t, providersSeedCmd, "")
		require.NoError(t, err)

		records, err := store.ListProviders(t.Context())
		require.NoError(t, err)
		assert.NotEmpty(t, records)
		assert.Equal(t, 1, reg.refreshes)
		assert.Contains(t, out, "Seeded")
	})

	t.Run("writes catalog file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.toml")
		require.NoError(t, file.WriteCatalog(path, &file.Catalog{
			Providers: []domain.ProviderRecord{{Provider: "local", Models: []string{"custom"}}},
		}))

		store := memory.NewRegistryStore()
		withDeps(t, Dependencies{Registry: testRegistry(), Store: store})
		require.NoError(t, providersSeedCmd.Flags().Set("catalog", path))
		t.Cleanup(func() { _ = providersSeedCmd.Flags().Set("catalog", "") })

		out, err := runCommand(t, providersSeedCmd, "")
		require.NoError(t, err)
		assert.Contains(t, out, "Seeded 1 generation and 0 embedding providers")

		records, err := store.ListProviders(t.Context())
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, "local", records[0].Provider)
	})

	t.Run("bad catalog writes nothing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.toml")
		require.NoError(t, os.WriteFile(path, []byte("[[providers]]\nmodels = [\"x\"]\n"), 0600))

		store := memory.NewRegistryStore()
		withDeps(t, Dependencies{Registry: testRegistry(), Store: store})
		require.NoError(t, providersSeedCmd.Flags().Set("catalog", path))
		t.Cleanup(func() { _ = providersSeedCmd.Flags().Set("catalog", "") })

		_, err := runCommand(t, providersSeedCmd, "")
		assert.ErrorIs(t, err, domain.ErrConfiguration)

		records, err := store.ListProviders(t.Context())
		require.NoError(t, err)
		assert.Empty(t, records)
	})
}

func TestProvidersExport(t *testing.T) {
	withDeps(t, Dependencies{Registry: testRegistry()})
	path := filepath.Join(t.TempDir(), "out", "catalog.toml")

	out, err := runCommand(t, providersExportCmd, "", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 generation and 1 embedding providers")

	catalog, err := file.LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog.Providers, 2)
	assert.Equal(t, "ollama", catalog.Providers[0].Provider)
	require.Len(t, catalog.EmbeddingProviders, 1)
}

func TestDescribeError(t *testing.T) {
	assert.Contains(t, describeError(domain.ErrUnknownProvider).Error(), "docqa providers list")
	assert.Contains(t, describeError(domain.ErrValidation).Error(), "environment variables")

	plain := errors.New("boom")
	assert.Equal(t, plain, describeError(plain))
}

func TestProvidersRemove(t *testing.T) {
	t.Run("requires registry", func(t *testing.T) {
		withDeps(t, Dependencies{})
		_, err := runCommand(t, providersRemoveCmd, "", "openai")
		assert.ErrorIs(t, err, errRegistryNotConfigured)
	})

	t.Run("removes generation record", func(t *testing.T) {
		reg := testRegistry()
		withDeps(t, Dependencies{Registry: reg})

		out, err := runCommand(t, providersRemoveCmd, "", "ollama")
		require.NoError(t, err)
		assert.Equal(t, []string{"generation:ollama"}, reg.deleted)
		assert.Contains(t, out, "Removed generation provider ollama")
	})

	t.Run("removes embedding record", func(t *testing.T) {
		reg := testRegistry()
		withDeps(t, Dependencies{Registry: reg})
		require.NoError(t, providersRemoveCmd.Flags().Set("embedding", "true"))
		t.Cleanup(func() { _ = providersRemoveCmd.Flags().Set("embedding", "false") })

		out, err := runCommand(t, providersRemoveCmd, "", "openai")
		require.NoError(t, err)
		assert.Equal(t, []string{"embedding:openai"}, reg.deleted)
		assert.Contains(t, out, "Removed embedding provider openai")
	})

	t.Run("unknown id", func(t *testing.T) {
		reg := testRegistry()
		withDeps(t, Dependencies{Registry: reg})

		_, err := runCommand(t, providersRemoveCmd, "", "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), `no generation provider "nope"`)
		assert.Empty(t, reg.deleted)
	})

	t.Run("store failure", func(t *testing.T) {
		reg := testRegistry()
		reg.deleteErr = domain.ErrRegistryUnavailable
		withDeps(t, Dependencies{Registry: reg})

		_, err := runCommand(t, providersRemoveCmd, "", "openai")
		assert.ErrorIs(t, err, domain.ErrRegistryUnavailable)
	})
}
