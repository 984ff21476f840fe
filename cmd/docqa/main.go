// Command docqa answers questions about local documents with the
// generation and embedding providers in its registry.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/docqa/internal/adapters/driven/ai"
	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/redis"
	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/docqa/internal/adapters/driven/tokenizer"
	"github.com/custodia-labs/docqa/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/docqa/internal/adapters/driving/cli"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/services"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/normalisers"
	"github.com/custodia-labs/docqa/internal/postprocessors"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var configStore driven.ConfigStore
	fileStore, err := file.NewConfigStore("")
	switch {
	case errors.Is(err, domain.ErrConfiguration):
		return fmt.Errorf("open config: %w", err)
	case err != nil:
		logger.Warn("config directory unavailable, settings will not persist: %v", err)
		configStore = memory.NewConfigStore()
	default:
		configStore = fileStore
	}
	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	store := openRegistryStore(ctx, settings.Registry)
	if store != nil {
		defer store.Close()
	}
	registry := services.NewProviderRegistry(store, services.WithTTL(settings.Registry.TTL))

	counter := tokenizer.New(tokenizer.DefaultEncoding)
	factoryCfg := services.FactoryConfig{MaxHandles: settings.Cache.MaxHandles}
	models := services.NewModelFactory(registry, ai.GenerationDrivers(ai.Options{}), factoryCfg)
	embeddings := services.NewEmbeddingFactory(registry, ai.EmbeddingDrivers(ai.Options{}), counter, factoryCfg)

	processors := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(processors)
	pipeline := services.NewRetrievalPipeline(postprocessors.ChunkingFactory(processors), embeddings, flat.Factory(),
		services.PipelineConfig{
			BatchSize:     settings.Ingest.BatchSize,
			Workers:       settings.Ingest.Workers,
			RatePerSecond: settings.Ingest.RatePerSecond,
		})

	prompts, err := file.NewPromptStore("")
	if err != nil {
		return fmt.Errorf("open prompts: %w", err)
	}
	engine := services.NewRAGQueryEngine(models, embeddings, prompts, counter,
		services.RAGConfig{MaxContextTokens: settings.RAG.MaxContextTokens})

	session := services.NewSession(registry)
	defer session.Close()
	assistant := services.NewAssistant(session, services.AssistantDeps{
		Registry:   registry,
		Models:     models,
		Embeddings: embeddings,
		Pipeline:   pipeline,
		Engine:     engine,
		Extractor:  normalisers.NewExtractor(nil),
	})
	defer assistant.Close()

	if settings.Registry.CatalogPath != "" && store != nil {
		watcher := file.NewCatalogWatcher(settings.Registry.CatalogPath, store, registry)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Warn("provider catalog not watched: %v", err)
			}
		}()
	}

	cli.SetVersion(version)
	cli.SetDependencies(cli.Dependencies{
		Registry:    registry,
		Credentials: session.Credentials(),
		Assistant:   assistant,
		Settings:    settingsService,
		Store:       store,
	})
	return cli.Execute(ctx)
}

// openRegistryStore opens the configured backend. A backend that cannot be
// opened yields nil, and the registry serves its built-in providers.
func openRegistryStore(ctx context.Context, cfg domain.RegistrySettings) driven.RegistryStore {
	switch cfg.Backend {
	case domain.RegistryBackendMemory:
		return memory.NewRegistryStore()
	case domain.RegistryBackendRedis:
		s, err := redis.NewStore(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis registry unavailable, serving built-in providers: %v", err)
			return nil
		}
		return s
	default:
		s, err := sqlite.NewStore("")
		if err != nil {
			logger.Warn("sqlite registry unavailable, serving built-in providers: %v", err)
			return nil
		}
		return s
	}
}
