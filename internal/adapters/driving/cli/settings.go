package cli

import (
	"bufio"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var registryBackends = []domain.RegistryBackend{
	domain.RegistryBackendSQLite,
	domain.RegistryBackendRedis,
	domain.RegistryBackendMemory,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the registry backend, ingestion and answering
defaults. Provider credentials are not settings and are never saved.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the registry backend and chunking.`,
	RunE:  runSettingsWizard,
}

var settingsBackendCmd = &cobra.Command{
	Use:   "backend <sqlite|redis|memory>",
	Short: "Set the registry backend",
	Long: `Set the document store behind the provider registry.

Available backends:
  sqlite - local file in ~/.docqa/data (default)
  redis  - shared Redis hash, requires --redis-addr
  memory - in-process only, seeded from the built-in catalog`,
	Args: cobra.ExactArgs(1),
	RunE: runSettingsBackend,
}

var settingsIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Set default chunking parameters",
	RunE:  runSettingsIngest,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings",
	RunE:  runSettingsReset,
}

func init() {
	settingsBackendCmd.Flags().String("redis-addr", "", "Redis address (host:port)")
	settingsIngestCmd.Flags().Int("chunk-size", 0, "characters per chunk")
	settingsIngestCmd.Flags().Int("overlap", -1, "characters shared by consecutive chunks")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsBackendCmd)
	settingsCmd.AddCommand(settingsIngestCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Registry]")
	cmd.Printf("  Backend: %s\n", settings.Registry.Backend)
	if settings.Registry.Backend == domain.RegistryBackendRedis {
		cmd.Printf("  Redis: %s\n", valueOrUnset(settings.Registry.RedisAddr))
	}
	cmd.Printf("  Cache TTL: %s\n", settings.Registry.TTL)
	cmd.Printf("  Catalog: %s\n", valueOrUnset(settings.Registry.CatalogPath))
	cmd.Println()

	cmd.Println("[Cache]")
	cmd.Printf("  Max handles: %d\n", settings.Cache.MaxHandles)
	cmd.Println()

	cmd.Println("[Ingest]")
	cmd.Printf("  Chunk size: %d\n", settings.Ingest.ChunkSize)
	cmd.Printf("  Overlap: %d\n", settings.Ingest.Overlap)
	cmd.Printf("  Batch size: %d\n", settings.Ingest.BatchSize)
	cmd.Printf("  Workers: %d\n", settings.Ingest.Workers)
	cmd.Printf("  Rate: %g requests/s\n", settings.Ingest.RatePerSecond)
	cmd.Println()

	cmd.Println("[RAG]")
	cmd.Printf("  Top k: %d\n", settings.RAG.TopK)
	cmd.Printf("  Max context tokens: %d\n", settings.RAG.MaxContextTokens)
	cmd.Printf("  Temperature: %g\n", settings.RAG.Temperature)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'docqa settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsBackend(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}
	backend := domain.RegistryBackend(args[0])
	addr, _ := cmd.Flags().GetString("redis-addr")

	if err := settingsService.SetRegistryBackend(backend, addr); err != nil {
		return fmt.Errorf("failed to set registry backend: %w", err)
	}
	cmd.Printf("Registry backend set to: %s\n", backend)
	return nil
}

func runSettingsIngest(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	chunkSize, _ := cmd.Flags().GetInt("chunk-size")
	overlap, _ := cmd.Flags().GetInt("overlap")
	if chunkSize <= 0 {
		chunkSize = settings.Ingest.ChunkSize
	}
	if overlap < 0 {
		overlap = settings.Ingest.Overlap
	}

	if err := settingsService.SetIngest(chunkSize, overlap); err != nil {
		return fmt.Errorf("failed to set chunking: %w", err)
	}
	cmd.Printf("Chunking set to %d characters with %d overlap\n", chunkSize, overlap)
	return nil
}

func runSettingsReset(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}
	defaults := settingsService.GetDefaults()
	if err := settingsService.Save(&defaults); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	cmd.Println("Settings restored to defaults.")
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errSettingsNotConfigured
	}
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("docqa Settings Wizard")
	cmd.Println("=====================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Select Registry Backend")
	cmd.Println("-------------------------------")
	current := 1
	for i, b := range registryBackends {
		if b == settings.Registry.Backend {
			current = i + 1
		}
		cmd.Printf("  %d. %s\n", i+1, b)
	}
	cmd.Printf("\nEnter choice [%d]: ", current)
	backend := registryBackends[parseChoice(readLine(reader), len(registryBackends), current)-1]

	addr := settings.Registry.RedisAddr
	if backend == domain.RegistryBackendRedis {
		cmd.Printf("Redis address [%s]: ", valueOrDefault(addr, "localhost:6379"))
		if input := readLine(reader); input != "" {
			addr = input
		} else if addr == "" {
			addr = "localhost:6379"
		}
	}
	if err := settingsService.SetRegistryBackend(backend, addr); err != nil {
		return fmt.Errorf("failed to set registry backend: %w", err)
	}
	cmd.Printf("Set registry backend to: %s\n\n", backend)

	cmd.Println("Step 2: Chunking")
	cmd.Println("----------------")
	cmd.Printf("Chunk size [%d]: ", settings.Ingest.ChunkSize)
	chunkSize := parseInt(readLine(reader), settings.Ingest.ChunkSize)
	cmd.Printf("Overlap [%d]: ", settings.Ingest.Overlap)
	overlap := parseInt(readLine(reader), settings.Ingest.Overlap)
	if err := settingsService.SetIngest(chunkSize, overlap); err != nil {
		return fmt.Errorf("failed to set chunking: %w", err)
	}
	cmd.Printf("Set chunking to %d characters with %d overlap\n\n", chunkSize, overlap)

	cmd.Println("Setup complete.")
	return nil
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func parseInt(input string, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil {
		return defaultVal
	}
	return val
}

func valueOrUnset(s string) string {
	return valueOrDefault(s, "(not set)")
}

func valueOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
