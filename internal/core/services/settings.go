package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage. Credentials never have keys here.
const (
	keyRegistryBackend = "registry.backend"
	keyRegistryTTL     = "registry.ttl"
	keyRegistryCatalog = "registry.catalog"
	keyRegistryRedis   = "registry.redis_addr"
	keyCacheMaxHandles = "cache.max_handles"
	keyIngestChunkSize = "ingest.chunk_size"
	keyIngestOverlap   = "ingest.overlap"
	keyIngestBatchSize = "ingest.batch_size"
	keyIngestWorkers   = "ingest.workers"
	keyIngestRate      = "ingest.rate_per_second"
	keyRAGTopK         = "rag.top_k"
	keyRAGMaxContext   = "rag.max_context_tokens"
	keyRAGTemperature  = "rag.temperature"
)

const (
	maxRAGTemperature = 2.0
	minRegistryTTL    = time.Second
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore) *SettingsService {
	return &SettingsService{configStore: configStore}
}

// Get retrieves current application settings. Missing or malformed values
// take their defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Registry: domain.RegistrySettings{
			Backend:     s.getBackend(defaults.Registry.Backend),
			TTL:         s.getDuration(keyRegistryTTL, defaults.Registry.TTL),
			CatalogPath: s.configStore.GetString(keyRegistryCatalog),
			RedisAddr:   s.configStore.GetString(keyRegistryRedis),
		},
		Cache: domain.CacheSettings{
			MaxHandles: s.getInt(keyCacheMaxHandles, defaults.Cache.MaxHandles),
		},
		Ingest: domain.IngestSettings{
			ChunkSize:     s.getInt(keyIngestChunkSize, defaults.Ingest.ChunkSize),
			Overlap:       s.getIntOrZero(keyIngestOverlap, defaults.Ingest.Overlap),
			BatchSize:     s.getInt(keyIngestBatchSize, defaults.Ingest.BatchSize),
			Workers:       s.getInt(keyIngestWorkers, defaults.Ingest.Workers),
			RatePerSecond: s.getFloat(keyIngestRate, defaults.Ingest.RatePerSecond),
		},
		RAG: domain.RAGSettings{
			TopK:             s.getInt(keyRAGTopK, defaults.RAG.TopK),
			MaxContextTokens: s.getInt(keyRAGMaxContext, defaults.RAG.MaxContextTokens),
			Temperature:      s.getFloat(keyRAGTemperature, defaults.RAG.Temperature),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyRegistryBackend, settings.Registry.Backend.String()},
		{keyRegistryTTL, settings.Registry.TTL.String()},
		{keyRegistryCatalog, settings.Registry.CatalogPath},
		{keyRegistryRedis, settings.Registry.RedisAddr},
		{keyCacheMaxHandles, settings.Cache.MaxHandles},
		{keyIngestChunkSize, settings.Ingest.ChunkSize},
		{keyIngestOverlap, settings.Ingest.Overlap},
		{keyIngestBatchSize, settings.Ingest.BatchSize},
		{keyIngestWorkers, settings.Ingest.Workers},
		{keyIngestRate, settings.Ingest.RatePerSecond},
		{keyRAGTopK, settings.RAG.TopK},
		{keyRAGMaxContext, settings.RAG.MaxContextTokens},
		{keyRAGTemperature, settings.RAG.Temperature},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	return nil
}

// SetRegistryBackend selects the registry's document store.
func (s *SettingsService) SetRegistryBackend(backend domain.RegistryBackend, redisAddr string) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: invalid registry backend: %s", domain.ErrConfiguration, backend)
	}
	if backend == domain.RegistryBackendRedis && redisAddr == "" {
		return fmt.Errorf("%w: redis backend requires an address", domain.ErrConfiguration)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Registry.Backend = backend
	settings.Registry.RedisAddr = redisAddr
	return s.Save(settings)
}

// SetIngest updates the default chunking parameters.
func (s *SettingsService) SetIngest(chunkSize, overlap int) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Ingest.ChunkSize = chunkSize
	settings.Ingest.Overlap = overlap
	if err := validateSettings(settings); err != nil {
		return err
	}
	return s.Save(settings)
}

// Validate checks that current settings are internally consistent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return validateSettings(settings)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

func validateSettings(settings *domain.AppSettings) error {
	if !settings.Registry.Backend.IsValid() {
		return fmt.Errorf("%w: invalid registry backend: %s", domain.ErrConfiguration, settings.Registry.Backend)
	}
	if settings.Registry.Backend == domain.RegistryBackendRedis && settings.Registry.RedisAddr == "" {
		return fmt.Errorf("%w: %s is required for the redis backend", domain.ErrConfiguration, keyRegistryRedis)
	}
	if settings.Registry.TTL < minRegistryTTL {
		return fmt.Errorf("%w: %s must be at least %s", domain.ErrConfiguration, keyRegistryTTL, minRegistryTTL)
	}
	if settings.Cache.MaxHandles <= 0 {
		return fmt.Errorf("%w: %s must be positive", domain.ErrConfiguration, keyCacheMaxHandles)
	}

	ingest := settings.Ingest
	if ingest.ChunkSize <= 0 || ingest.Overlap < 0 || ingest.Overlap >= ingest.ChunkSize {
		return fmt.Errorf("%w: overlap %d must satisfy 0 <= overlap < chunk size %d",
			domain.ErrConfiguration, ingest.Overlap, ingest.ChunkSize)
	}
	if ingest.BatchSize <= 0 || ingest.Workers <= 0 {
		return fmt.Errorf("%w: %s and %s must be positive", domain.ErrConfiguration, keyIngestBatchSize, keyIngestWorkers)
	}

	rag := settings.RAG
	if rag.TopK <= 0 {
		return fmt.Errorf("%w: %s must be positive", domain.ErrConfiguration, keyRAGTopK)
	}
	if rag.MaxContextTokens <= 0 {
		return fmt.Errorf("%w: %s must be positive", domain.ErrConfiguration, keyRAGMaxContext)
	}
	if rag.Temperature < 0 || rag.Temperature > maxRAGTemperature {
		return fmt.Errorf("%w: %s must be between 0 and %.0f", domain.ErrConfiguration, keyRAGTemperature, maxRAGTemperature)
	}
	return nil
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntOrZero is getInt for keys where zero is a meaningful value.
func (s *SettingsService) getIntOrZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	val, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return defaultVal
	}
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getBackend(defaultVal domain.RegistryBackend) domain.RegistryBackend {
	val := s.configStore.GetString(keyRegistryBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.RegistryBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
