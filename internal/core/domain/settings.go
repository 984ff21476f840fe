package domain

import (
	"fmt"
	"strings"
	"time"
)

const unknownDescription = "unknown"

// RegistryBackend selects the document store behind the provider registry.
type RegistryBackend string

// Available registry backends.
const (
	// RegistryBackendSQLite stores provider documents in a local SQLite file.
	RegistryBackendSQLite RegistryBackend = "sqlite"

	// RegistryBackendRedis stores provider documents in a shared Redis hash.
	RegistryBackendRedis RegistryBackend = "redis"

	// RegistryBackendMemory keeps provider documents in process memory.
	RegistryBackendMemory RegistryBackend = "memory"
)

// IsValid returns true if the backend is recognised.
func (b RegistryBackend) IsValid() bool {
	switch b {
	case RegistryBackendSQLite, RegistryBackendRedis, RegistryBackendMemory:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b RegistryBackend) String() string {
	return string(b)
}

// RegistrySettings configures the provider registry.
type RegistrySettings struct {
	// Backend is the document store kind.
	Backend RegistryBackend

	// TTL is how long cached descriptors are served before a reload.
	TTL time.Duration

	// CatalogPath is an optional TOML catalog watched for changes.
	CatalogPath string

	// RedisAddr is the Redis address for the redis backend.
	RedisAddr string
}

// CacheSettings bounds the handle caches.
type CacheSettings struct {
	// MaxHandles is the LRU capacity of each handle cache.
	MaxHandles int
}

// IngestSettings configures retriever builds.
type IngestSettings struct {
	ChunkSize     int
	Overlap       int
	BatchSize     int
	Workers       int
	RatePerSecond float64
}

// RAGSettings configures question answering.
type RAGSettings struct {
	TopK             int
	MaxContextTokens int
	Temperature      float64
}

// AppSettings holds all non-secret application configuration.
// Credentials are never part of settings.
type AppSettings struct {
	Registry RegistrySettings
	Cache    CacheSettings
	Ingest   IngestSettings
	RAG      RAGSettings
}

// DefaultAppSettings returns settings with sensible defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Registry: RegistrySettings{
			Backend: RegistryBackendSQLite,
			TTL:     5 * time.Minute,
		},
		Cache: CacheSettings{
			MaxHandles: 64,
		},
		Ingest: IngestSettings{
			ChunkSize:     1000,
			Overlap:       200,
			BatchSize:     64,
			Workers:       4,
			RatePerSecond: 10,
		},
		RAG: RAGSettings{
			TopK:             4,
			MaxContextTokens: 6000,
			Temperature:      0,
		},
	}
}

// secretKeyNames mark setting keys that would hold a credential. A key is
// rejected when its last segment is one of these or ends in "_" plus one.
var secretKeyNames = []string{"api_key", "apikey", "key", "secret", "password", "token"}

// CheckSettingKey rejects empty keys and keys that look like credentials.
// Credentials belong to a session and are never written to settings.
func CheckSettingKey(key string) error {
	if key == "" {
		return fmt.Errorf("config: %w: empty key", ErrConfiguration)
	}
	leaf := strings.ToLower(key[strings.LastIndex(key, ".")+1:])
	for _, name := range secretKeyNames {
		if leaf == name || strings.HasSuffix(leaf, "_"+name) {
			return fmt.Errorf("config: %w: %q looks like a credential; credentials are never stored",
				ErrConfiguration, key)
		}
	}
	return nil
}
