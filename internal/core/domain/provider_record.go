package domain

import "fmt"

// customModelID in a record's model list marks user-defined model ids.
const customModelID = "custom"

// CredentialFieldRecord is the stored form of a CredentialField.
type CredentialFieldRecord struct {
	Name     string `json:"name" toml:"name"`
	Type     string `json:"type" toml:"type"`
	Required bool   `json:"required" toml:"required"`
	Env      string `json:"env,omitempty" toml:"env,omitempty"`
}

// ProviderRecord is a generation provider document as read from the registry store.
type ProviderRecord struct {
	Provider          string                  `json:"provider" toml:"provider"`
	Name              string                  `json:"name" toml:"name"`
	CredentialFields  []CredentialFieldRecord `json:"credentialFields" toml:"credential_fields"`
	Models            []string                `json:"models" toml:"models"`
	RequiresEndpoint  bool                    `json:"requiresEndpoint" toml:"requires_endpoint"`
	RequiresProject   bool                    `json:"requiresProject" toml:"requires_project"`
	Driver            string                  `json:"driver,omitempty" toml:"driver,omitempty"`
	BaseURL           string                  `json:"baseURL,omitempty" toml:"base_url,omitempty"`
	SupportsStreaming bool                    `json:"supportsStreaming,omitempty" toml:"supports_streaming,omitempty"`
	CustomModels      bool                    `json:"customModels,omitempty" toml:"custom_models,omitempty"`
}

// EmbeddingModelRecord is the stored form of an EmbeddingModel.
type EmbeddingModelRecord struct {
	Model      string `json:"model" toml:"model"`
	Dimensions int    `json:"dimensions" toml:"dimensions"`
	MaxInput   int    `json:"maxInput" toml:"max_input"`
}

// EmbeddingProviderRecord is an embedding provider document as read from the registry store.
type EmbeddingProviderRecord struct {
	Provider         string                  `json:"provider" toml:"provider"`
	Name             string                  `json:"name" toml:"name"`
	CredentialFields []CredentialFieldRecord `json:"credentialFields" toml:"credential_fields"`
	Models           []EmbeddingModelRecord  `json:"models" toml:"models"`
	Driver           string                  `json:"driver,omitempty" toml:"driver,omitempty"`
	BaseURL          string                  `json:"baseURL,omitempty" toml:"base_url,omitempty"`
	Batch            bool                    `json:"batch,omitempty" toml:"batch,omitempty"`
	Concurrent       bool                    `json:"concurrent,omitempty" toml:"concurrent,omitempty"`
}

// Descriptor converts the record, rejecting malformed documents.
func (r ProviderRecord) Descriptor() (ProviderDescriptor, error) {
	if r.Provider == "" {
		return ProviderDescriptor{}, fmt.Errorf("provider record: %w: missing provider id", ErrConfiguration)
	}
	fields, err := fieldsFromRecords(r.Provider, r.CredentialFields)
	if err != nil {
		return ProviderDescriptor{}, err
	}

	d := ProviderDescriptor{
		ID:               r.Provider,
		Name:             r.Name,
		Driver:           r.Driver,
		DefaultBaseURL:   r.BaseURL,
		CredentialFields: fields,
		Capabilities: ProviderCapabilities{
			Streaming:    r.SupportsStreaming,
			CustomModels: r.CustomModels,
		},
		RequiresEndpoint: r.RequiresEndpoint,
		RequiresProject:  r.RequiresProject,
	}
	for _, m := range r.Models {
		if m == customModelID {
			d.Capabilities.CustomModels = true
			continue
		}
		if m != "" {
			d.Models = append(d.Models, m)
		}
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	return d, nil
}

// Descriptor converts the record, rejecting malformed documents.
func (r EmbeddingProviderRecord) Descriptor() (EmbeddingProviderDescriptor, error) {
	if r.Provider == "" {
		return EmbeddingProviderDescriptor{}, fmt.Errorf("embedding provider record: %w: missing provider id", ErrConfiguration)
	}
	fields, err := fieldsFromRecords(r.Provider, r.CredentialFields)
	if err != nil {
		return EmbeddingProviderDescriptor{}, err
	}

	d := EmbeddingProviderDescriptor{
		ID:               r.Provider,
		Name:             r.Name,
		Driver:           r.Driver,
		DefaultBaseURL:   r.BaseURL,
		CredentialFields: fields,
		Capabilities:     EmbeddingCapabilities{Batch: r.Batch, Concurrent: r.Concurrent},
	}
	for _, m := range r.Models {
		if m.Model == "" {
			continue
		}
		if m.Dimensions <= 0 {
			return EmbeddingProviderDescriptor{}, fmt.Errorf("embedding provider %s: %w: model %s has no dimensions",
				r.Provider, ErrConfiguration, m.Model)
		}
		d.Models = append(d.Models, EmbeddingModel{ID: m.Model, Dimensions: m.Dimensions, MaxInput: m.MaxInput})
	}
	if d.Name == "" {
		d.Name = d.ID
	}
	return d, nil
}

// RecordFromProvider converts a descriptor into its stored form.
func RecordFromProvider(d ProviderDescriptor) ProviderRecord {
	models := append([]string(nil), d.Models...)
	return ProviderRecord{
		Provider:          d.ID,
		Name:              d.Name,
		CredentialFields:  recordsFromFields(d.CredentialFields),
		Models:            models,
		RequiresEndpoint:  d.RequiresEndpoint,
		RequiresProject:   d.RequiresProject,
		Driver:            d.Driver,
		BaseURL:           d.DefaultBaseURL,
		SupportsStreaming: d.Capabilities.Streaming,
		CustomModels:      d.Capabilities.CustomModels,
	}
}

// RecordFromEmbeddingProvider converts a descriptor into its stored form.
func RecordFromEmbeddingProvider(d EmbeddingProviderDescriptor) EmbeddingProviderRecord {
	models := make([]EmbeddingModelRecord, len(d.Models))
	for i, m := range d.Models {
		models[i] = EmbeddingModelRecord{Model: m.ID, Dimensions: m.Dimensions, MaxInput: m.MaxInput}
	}
	return EmbeddingProviderRecord{
		Provider:         d.ID,
		Name:             d.Name,
		CredentialFields: recordsFromFields(d.CredentialFields),
		Models:           models,
		Driver:           d.Driver,
		BaseURL:          d.DefaultBaseURL,
		Batch:            d.Capabilities.Batch,
		Concurrent:       d.Capabilities.Concurrent,
	}
}

func fieldsFromRecords(provider string, records []CredentialFieldRecord) ([]CredentialField, error) {
	fields := make([]CredentialField, 0, len(records))
	for _, rec := range records {
		typ := CredentialFieldType(rec.Type)
		if typ == "" {
			typ = FieldText
		}
		if rec.Name == "" || !typ.IsValid() {
			return nil, fmt.Errorf("provider %s: %w: invalid credential field %q (type %q)",
				provider, ErrConfiguration, rec.Name, rec.Type)
		}
		fields = append(fields, CredentialField{
			Name:     rec.Name,
			Type:     typ,
			Required: rec.Required,
			Env:      rec.Env,
		})
	}
	return fields, nil
}

func recordsFromFields(fields []CredentialField) []CredentialFieldRecord {
	records := make([]CredentialFieldRecord, len(fields))
	for i, f := range fields {
		records[i] = CredentialFieldRecord{
			Name:     f.Name,
			Type:     f.Type.String(),
			Required: f.Required,
			Env:      f.Env,
		}
	}
	return records
}
