// Package cli provides the docqa command-line interface.
// Commands run against the driving ports installed by SetDependencies.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var verbose bool

// Dependencies are the services the commands use.
type Dependencies struct {
	Registry    driving.ProviderRegistry
	Credentials driving.CredentialService
	Assistant   driving.AssistantService
	Settings    driving.SettingsService

	// Store is the registry's backing store, written by providers seed.
	Store driven.RegistryStore
}

var (
	providerRegistry  driving.ProviderRegistry
	credentialService driving.CredentialService
	assistantService  driving.AssistantService
	settingsService   driving.SettingsService
	registryStore     driven.RegistryStore

	// lookupEnv reads credential environment variables.
	lookupEnv = os.LookupEnv
)

var (
	errRegistryNotConfigured  = errors.New("provider registry not configured")
	errAssistantNotConfigured = errors.New("assistant not configured")
	errSettingsNotConfigured  = errors.New("settings service not configured")
)

var rootCmd = &cobra.Command{
	Use:   "docqa",
	Short: "Ask questions about your documents with any LLM provider",
	Long: `docqa builds a retriever over local documents and answers questions
from the retrieved passages using the generation provider of your choice.

Provider credentials are read from environment variables (for example
OPENAI_API_KEY) or entered in 'docqa chat'. They are held in memory for
the lifetime of the process and never written to disk.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug output")
}

// SetDependencies installs the services used by the commands.
func SetDependencies(deps Dependencies) {
	providerRegistry = deps.Registry
	credentialService = deps.Credentials
	assistantService = deps.Assistant
	settingsService = deps.Settings
	registryStore = deps.Store
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadEnvCredentials fills the session's credentials from the environment
// for every provider in the registry.
func loadEnvCredentials(ctx context.Context) []string {
	if credentialService == nil || providerRegistry == nil {
		return nil
	}

	seen := make(map[string]bool)
	var ids []string
	for _, p := range providerRegistry.ListProviders(ctx) {
		if !seen[p.ID] {
			seen[p.ID] = true
			ids = append(ids, p.ID)
		}
	}
	for _, p := range providerRegistry.ListEmbeddingProviders(ctx) {
		if !seen[p.ID] {
			seen[p.ID] = true
			ids = append(ids, p.ID)
		}
	}

	loaded := credentialService.LoadFromEnv(ctx, ids, lookupEnv)
	if len(loaded) > 0 {
		logger.Debug("credentials loaded from environment for %v", loaded)
	}
	return loaded
}
