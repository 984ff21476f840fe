package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func setChatOpts(t *testing.T, opts queryOptions) {
	t.Helper()
	saved := chatOpts
	chatOpts = opts
	t.Cleanup(func() { chatOpts = saved })
}

func TestChat(t *testing.T) {
	t.Run("answers until quit", func(t *testing.T) {
		assistant := &mockAssistant{answer: testAnswer()}
		creds := newMockCredentials()
		creds.creds["openai"] = domain.CredentialFields{"api_key": "sk-test"}
		withDeps(t, Dependencies{Registry: testRegistry(), Credentials: creds, Assistant: assistant})
		setChatOpts(t, defaultQueryOptions())

		out, err := runCommand(t, chatCmd, "first question\n\n/sources\nsecond question\n/quit\nignored\n")
		require.NoError(t, err)

		require.Len(t, assistant.asks, 2)
		assert.Equal(t, "first question", assistant.asks[0].Question)
		assert.Equal(t, "second question", assistant.asks[1].Question)
		assert.Len(t, assistant.builds, 1, "one retriever for the whole session")
		assert.Contains(t, out, "Sources off")
		assert.Equal(t, []string{"ret-1"}, assistant.removed)
		assert.Empty(t, creds.ConfiguredProviders(), "credentials cleared on exit")
	})

	t.Run("ends at end of input", func(t *testing.T) {
		assistant := &mockAssistant{answer: testAnswer()}
		withDeps(t, Dependencies{Assistant: assistant})
		setChatOpts(t, defaultQueryOptions())

		_, err := runCommand(t, chatCmd, "only question")
		require.NoError(t, err)
		require.Len(t, assistant.asks, 1)
		assert.Equal(t, "only question", assistant.asks[0].Question)
	})

	t.Run("ask errors do not end the session", func(t *testing.T) {
		assistant := &mockAssistant{askErr: domain.ErrGenerationTimeout}
		withDeps(t, Dependencies{Assistant: assistant})
		setChatOpts(t, defaultQueryOptions())

		out, err := runCommand(t, chatCmd, "one\ntwo\n")
		require.NoError(t, err)
		assert.Len(t, assistant.asks, 2)
		assert.Contains(t, out, "Error: generation timed out")
	})

	t.Run("prompts for missing credentials once per provider", func(t *testing.T) {
		assistant := &mockAssistant{answer: testAnswer()}
		creds := newMockCredentials()
		withDeps(t, Dependencies{Registry: testRegistry(), Credentials: creds, Assistant: assistant})
		setChatOpts(t, defaultQueryOptions())

		out, err := runCommand(t, chatCmd, "sk-typed\n/quit\n")
		require.NoError(t, err)

		assert.Equal(t, 1, strings.Count(out, "Credentials for openai"))
		assert.NotContains(t, out, "sk-typed", "secrets are not echoed")
		assert.Len(t, assistant.builds, 1)
		assert.Empty(t, assistant.asks)
	})

	t.Run("rejected credentials stop before building", func(t *testing.T) {
		assistant := &mockAssistant{}
		creds := newMockCredentials()
		creds.setErr = domain.ErrValidation
		withDeps(t, Dependencies{Registry: testRegistry(), Credentials: creds, Assistant: assistant})
		setChatOpts(t, defaultQueryOptions())

		_, err := runCommand(t, chatCmd, "\n")
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.Empty(t, assistant.builds)
	})
}

func TestCredentialFieldsFor(t *testing.T) {
	withDeps(t, Dependencies{Registry: testRegistry()})

	fields := credentialFieldsFor(t.Context(), "openai")
	require.Len(t, fields, 1, "generation and embedding schemas are merged")
	assert.Equal(t, "api_key", fields[0].Name)
	assert.True(t, fields[0].Required)

	assert.Empty(t, credentialFieldsFor(t.Context(), "unknown"))
}
