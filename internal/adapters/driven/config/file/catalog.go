package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// CatalogFileName is the default catalog file inside the docqa home.
const CatalogFileName = "catalog.toml"

// Catalog is a TOML document listing provider records:
//
//	[[providers]]
//	provider = "openai"
//	models = ["gpt-4o", "gpt-4o-mini"]
//
//	[[embedding_providers]]
//	provider = "openai"
//	[[embedding_providers.models]]
//	model = "text-embedding-3-small"
//	dimensions = 1536
type Catalog struct {
	Providers          []domain.ProviderRecord          `toml:"providers"`
	EmbeddingProviders []domain.EmbeddingProviderRecord `toml:"embedding_providers"`
}

// SeedResult counts the records written by Seed.
type SeedResult struct {
	Providers          int
	EmbeddingProviders int
}

// DefaultCatalogPath returns ~/.docqa/catalog.toml.
func DefaultCatalogPath() (string, error) {
	home, err := HomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, CatalogFileName), nil
}

// LoadCatalog reads and validates a catalog file. A catalog with any
// malformed record is rejected as a whole so a typo never half-applies.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var c Catalog
	if err := toml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w: %w", path, domain.ErrConfiguration, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks every record converts to a descriptor and ids are unique
// within each collection.
func (c *Catalog) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for _, rec := range c.Providers {
		if _, err := rec.Descriptor(); err != nil {
			return err
		}
		if seen[rec.Provider] {
			return fmt.Errorf("%w: duplicate provider %q", domain.ErrConfiguration, rec.Provider)
		}
		seen[rec.Provider] = true
	}

	seen = make(map[string]bool, len(c.EmbeddingProviders))
	for _, rec := range c.EmbeddingProviders {
		if _, err := rec.Descriptor(); err != nil {
			return err
		}
		if seen[rec.Provider] {
			return fmt.Errorf("%w: duplicate embedding provider %q", domain.ErrConfiguration, rec.Provider)
		}
		seen[rec.Provider] = true
	}
	return nil
}

// WriteCatalog writes c as TOML with owner-only permissions.
func WriteCatalog(path string, c *Catalog) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create catalog directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write catalog %s: %w", path, err)
	}
	return nil
}

// Seed upserts every record into store. Records already in the store that
// the catalog does not name are left alone.
func (c *Catalog) Seed(ctx context.Context, store driven.RegistryStore) (SeedResult, error) {
	var res SeedResult
	for _, rec := range c.Providers {
		if err := store.UpsertProvider(ctx, rec); err != nil {
			return res, fmt.Errorf("seed provider %s: %w", rec.Provider, err)
		}
		res.Providers++
	}
	for _, rec := range c.EmbeddingProviders {
		if err := store.UpsertEmbeddingProvider(ctx, rec); err != nil {
			return res, fmt.Errorf("seed embedding provider %s: %w", rec.Provider, err)
		}
		res.EmbeddingProviders++
	}
	return res, nil
}
