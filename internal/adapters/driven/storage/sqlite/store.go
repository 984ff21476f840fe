package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/docqa/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.RegistryStore = (*Store)(nil)

// Table names for the two record collections.
const (
	tableProviders          = "providers"
	tableEmbeddingProviders = "embedding_providers"
)

// Store is a SQLite-backed registry store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.docqa/data/registry.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docqa", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "registry.db")

	// WAL lets registry reads proceed while another process writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// ListProviders returns all generation provider records sorted by id.
// Rows that cannot be decoded are skipped.
func (s *Store) ListProviders(ctx context.Context) ([]domain.ProviderRecord, error) {
	return listDocs[domain.ProviderRecord](ctx, s.db, tableProviders)
}

// ListEmbeddingProviders returns all embedding provider records sorted by id.
func (s *Store) ListEmbeddingProviders(ctx context.Context) ([]domain.EmbeddingProviderRecord, error) {
	return listDocs[domain.EmbeddingProviderRecord](ctx, s.db, tableEmbeddingProviders)
}

// UpsertProvider inserts or replaces a generation provider record.
func (s *Store) UpsertProvider(ctx context.Context, rec domain.ProviderRecord) error {
	return s.upsert(ctx, tableProviders, rec.Provider, rec)
}

// UpsertEmbeddingProvider inserts or replaces an embedding provider record.
func (s *Store) UpsertEmbeddingProvider(ctx context.Context, rec domain.EmbeddingProviderRecord) error {
	return s.upsert(ctx, tableEmbeddingProviders, rec.Provider, rec)
}

// DeleteProvider removes a generation provider record.
func (s *Store) DeleteProvider(ctx context.Context, id string) error {
	return s.delete(ctx, tableProviders, id)
}

// DeleteEmbeddingProvider removes an embedding provider record.
func (s *Store) DeleteEmbeddingProvider(ctx context.Context, id string) error {
	return s.delete(ctx, tableEmbeddingProviders, id)
}

func (s *Store) upsert(ctx context.Context, table, id string, rec any) error {
	if id == "" {
		return fmt.Errorf("sqlite registry: %w: missing provider id", domain.ErrConfiguration)
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sqlite registry: encode %s: %w", id, err)
	}

	//nolint:gosec // G201: table names are package constants.
	query := fmt.Sprintf(`
		INSERT INTO %s (id, doc, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at
	`, table)
	if _, err := s.db.ExecContext(ctx, query, id, string(doc)); err != nil {
		return fmt.Errorf("sqlite registry: upsert %s: %w", id, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, table, id string) error {
	//nolint:gosec // G201: table names are package constants.
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("sqlite registry: delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite registry: delete %s: %w", id, err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func listDocs[T any](ctx context.Context, db *sql.DB, table string) ([]T, error) {
	//nolint:gosec // G201: table names are package constants.
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT id, doc FROM %s ORDER BY id", table))
	if err != nil {
		return nil, fmt.Errorf("sqlite registry: list %s: %w", table, err)
	}
	defer rows.Close()

	var result []T
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, fmt.Errorf("sqlite registry: scan %s: %w", table, err)
		}
		var rec T
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			logger.Warn("sqlite registry: skipping undecodable %s row %q: %v", table, id, err)
			continue
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite registry: list %s: %w", table, err)
	}
	return result, nil
}

// migrate applies every embedded .up.sql file newer than the recorded
// schema version, each in its own transaction.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_registry.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) apply(version int, script string) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	if _, err = tx.Exec(script); err != nil {
		return err
	}
	if _, err = tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}
