package driving

import "github.com/custodia-labs/docqa/internal/core/domain"

// SettingsService manages non-secret application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// Validate checks that current settings are internally consistent.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings

	// SetRegistryBackend selects the registry's document store.
	SetRegistryBackend(backend domain.RegistryBackend, redisAddr string) error

	// SetIngest updates the default chunking parameters.
	SetIngest(chunkSize, overlap int) error
}
