package memory

import (
	"maps"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure ConfigStore implements the interface.
var _ driven.ConfigStore = (*ConfigStore)(nil)

// ConfigStore keeps settings in process memory. It backs tests and runs
// where the config directory cannot be created; nothing outlives the process.
// It applies the same credential-key rule as the file store.
type ConfigStore struct {
	mu       sync.RWMutex
	values   map[string]any
	snapshot map[string]any
}

// ConfigOption configures a ConfigStore.
type ConfigOption func(*ConfigStore)

// WithValues seeds the store. Load restores these values.
func WithValues(values map[string]any) ConfigOption {
	return func(s *ConfigStore) {
		maps.Copy(s.values, values)
	}
}

// NewConfigStore creates an in-memory config store.
func NewConfigStore(opts ...ConfigOption) *ConfigStore {
	s := &ConfigStore{values: make(map[string]any)}
	for _, opt := range opts {
		opt(s)
	}
	s.snapshot = maps.Clone(s.values)
	return s
}

// Get retrieves a configuration value by key.
func (s *ConfigStore) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	val, ok := s.values[key]
	return val, ok
}

// GetString retrieves a string configuration value.
func (s *ConfigStore) GetString(key string) string {
	val, _ := s.Get(key)
	str, _ := val.(string)
	return str
}

// GetInt retrieves an integer configuration value. Whole floats convert,
// fractional ones read as 0.
func (s *ConfigStore) GetInt(key string) int {
	val, _ := s.Get(key)
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return 0
}

// GetBool retrieves a boolean configuration value.
func (s *ConfigStore) GetBool(key string) bool {
	val, _ := s.Get(key)
	b, _ := val.(bool)
	return b
}

// GetStringSlice retrieves a string slice configuration value.
func (s *ConfigStore) GetStringSlice(key string) []string {
	val, _ := s.Get(key)
	switch v := val.(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	default:
		return nil
	}
}

// Set stores a configuration value. Keys that look like credentials are
// rejected with domain.ErrConfiguration.
func (s *ConfigStore) Set(key string, value any) error {
	if err := domain.CheckSettingKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Save records the current values as the state Load returns to.
func (s *ConfigStore) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = maps.Clone(s.values)
	return nil
}

// Load discards values set since the last Save.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = maps.Clone(s.snapshot)
	return nil
}

// Path returns ":memory:".
func (s *ConfigStore) Path() string {
	return ":memory:"
}
