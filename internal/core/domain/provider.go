package domain

// CredentialFieldType classifies a credential field for validation and display.
type CredentialFieldType string

// Credential field types.
const (
	// FieldSecret is a value that must never be displayed or logged.
	FieldSecret CredentialFieldType = "secret"

	// FieldText is a plain identifier such as a project or region.
	FieldText CredentialFieldType = "text"

	// FieldURL is an endpoint that must parse as an absolute URL.
	FieldURL CredentialFieldType = "url"
)

// IsValid returns true if the field type is recognised.
func (t CredentialFieldType) IsValid() bool {
	switch t {
	case FieldSecret, FieldText, FieldURL:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t CredentialFieldType) String() string {
	return string(t)
}

// CredentialField describes one credential a provider needs.
type CredentialField struct {
	// Name is the field key, e.g. "api_key" or "endpoint".
	Name string

	// Type drives validation and redaction.
	Type CredentialFieldType

	// Required fields must be present and non-empty.
	Required bool

	// Env names an environment variable the CLI may read the value from.
	Env string
}

// ProviderCapabilities are optional features of a generation provider.
type ProviderCapabilities struct {
	// Streaming is true if the provider can stream tokens.
	Streaming bool

	// CustomModels is true if any non-empty model id is accepted,
	// e.g. Azure deployment names or local Ollama tags.
	CustomModels bool
}

// ProviderDescriptor describes a text-generation provider.
// Descriptors are immutable once handed out by the registry.
type ProviderDescriptor struct {
	// ID is the unique provider identifier, e.g. "openai".
	ID string

	// Name is the human-readable display name.
	Name string

	// Driver selects the backend implementation. Empty means ID.
	Driver string

	// DefaultBaseURL is used when no endpoint credential is set.
	DefaultBaseURL string

	// CredentialFields is the ordered credential schema.
	CredentialFields []CredentialField

	// Models lists the model identifiers offered.
	Models []string

	// Capabilities holds optional feature flags.
	Capabilities ProviderCapabilities

	// RequiresEndpoint is true if the provider needs an endpoint credential.
	RequiresEndpoint bool

	// RequiresProject is true if the provider needs a project credential.
	RequiresProject bool
}

// DriverName returns the backend implementation name.
func (d ProviderDescriptor) DriverName() string {
	if d.Driver != "" {
		return d.Driver
	}
	return d.ID
}

// HasModel returns true if the model id is in the catalog.
func (d ProviderDescriptor) HasModel(model string) bool {
	for _, m := range d.Models {
		if m == model {
			return true
		}
	}
	return false
}

// AcceptsModel returns true if the model can be initialised on this provider.
func (d ProviderDescriptor) AcceptsModel(model string) bool {
	if model == "" {
		return false
	}
	return d.Capabilities.CustomModels || d.HasModel(model)
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (d ProviderDescriptor) Clone() ProviderDescriptor {
	d.CredentialFields = append([]CredentialField(nil), d.CredentialFields...)
	d.Models = append([]string(nil), d.Models...)
	return d
}

// EmbeddingModel describes one embedding model.
type EmbeddingModel struct {
	// ID is the model identifier.
	ID string

	// Dimensions is the output vector length.
	Dimensions int

	// MaxInput is the maximum input length in tokens. Zero means unknown.
	MaxInput int
}

// EmbeddingCapabilities are optional features of an embedding provider.
type EmbeddingCapabilities struct {
	// Batch is true if many texts can be embedded in one request.
	Batch bool

	// Concurrent is true if independent requests may run in parallel.
	Concurrent bool
}

// EmbeddingProviderDescriptor describes an embedding provider.
type EmbeddingProviderDescriptor struct {
	ID               string
	Name             string
	Driver           string
	DefaultBaseURL   string
	CredentialFields []CredentialField
	Models           []EmbeddingModel
	Capabilities     EmbeddingCapabilities
}

// DriverName returns the backend implementation name.
func (d EmbeddingProviderDescriptor) DriverName() string {
	if d.Driver != "" {
		return d.Driver
	}
	return d.ID
}

// Model looks up a model by id.
func (d EmbeddingProviderDescriptor) Model(id string) (EmbeddingModel, bool) {
	for _, m := range d.Models {
		if m.ID == id {
			return m, true
		}
	}
	return EmbeddingModel{}, false
}

// Clone returns a deep copy so callers cannot mutate registry state.
func (d EmbeddingProviderDescriptor) Clone() EmbeddingProviderDescriptor {
	d.CredentialFields = append([]CredentialField(nil), d.CredentialFields...)
	d.Models = append([]EmbeddingModel(nil), d.Models...)
	return d
}
