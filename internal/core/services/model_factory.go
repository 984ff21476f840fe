package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
	"github.com/custodia-labs/docqa/internal/logger"
	"github.com/custodia-labs/docqa/internal/metrics"
)

// FactoryConfig configures a handle factory.
type FactoryConfig struct {
	// MaxHandles is the LRU capacity. Defaults to DefaultMaxHandles.
	MaxHandles int
}

// modelKey identifies a generation handle. It holds the credential
// fingerprint, never the credentials.
type modelKey struct {
	provider    string
	model       string
	temperature float64
	maxTokens   int
	fingerprint string
}

// ModelHandle is an invokable generation handle bound to one provider,
// model, parameter set and credential fingerprint.
type ModelHandle struct {
	key     modelKey
	params  domain.GenerationParams
	client  driven.GenerationClient
	secrets []string
	closed  atomic.Bool
}

// Provider returns the provider id.
func (h *ModelHandle) Provider() string { return h.key.provider }

// Model returns the model id.
func (h *ModelHandle) Model() string { return h.key.model }

// Params returns the generation parameters.
func (h *ModelHandle) Params() domain.GenerationParams { return h.params }

func (h *ModelHandle) release() {
	if h.closed.CompareAndSwap(false, true) {
		if err := h.client.Close(); err != nil {
			logger.Debug("closing %s/%s client: %v", h.key.provider, h.key.model, err)
		}
	}
}

// ModelFactory resolves providers through the registry and produces
// cached generation handles.
type ModelFactory struct {
	registry driving.ProviderRegistry
	drivers  map[string]driven.GenerationProvider
	cache    *lru.Cache[modelKey, *ModelHandle]
}

// NewModelFactory creates a factory dispatching to the given drivers by name.
func NewModelFactory(registry driving.ProviderRegistry, drivers []driven.GenerationProvider, cfg FactoryConfig) *ModelFactory {
	byName := make(map[string]driven.GenerationProvider, len(drivers))
	for _, d := range drivers {
		byName[d.Name()] = d
	}
	return &ModelFactory{
		registry: registry,
		drivers:  byName,
		cache:    newHandleCache[modelKey, *ModelHandle](cacheGeneration, cfg.MaxHandles),
	}
}

// Initialize returns a handle for the provider and model using the
// session's credentials. A cached handle is returned without re-validating
// credentials; on a miss the credentials are validated against the
// provider's schema before any client is created.
func (f *ModelFactory) Initialize(ctx context.Context, creds CredentialSource,
	providerID, modelID string, params domain.GenerationParams) (*ModelHandle, error) {
	const op = "initialize model"

	desc, err := f.registry.GetProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownProvider) {
			return nil, domain.NewOpError(domain.ErrUnknownProvider, op, providerID, modelID, nil)
		}
		return nil, err
	}
	if !desc.AcceptsModel(modelID) {
		return nil, domain.NewOpError(domain.ErrUnknownModel, op, providerID, modelID, nil)
	}
	if params.MaxTokens < 0 || params.Temperature < 0 {
		return nil, domain.NewOpError(domain.ErrConfiguration, op, providerID, modelID,
			fmt.Errorf("temperature and max tokens must not be negative"))
	}

	fingerprint, _ := creds.Fingerprint(providerID)
	key := modelKey{
		provider:    providerID,
		model:       modelID,
		temperature: params.RoundedTemperature(),
		maxTokens:   params.MaxTokens,
		fingerprint: fingerprint,
	}
	if h, ok := f.cache.Get(key); ok && !h.closed.Load() {
		recordCacheLookup(cacheGeneration, true)
		return h, nil
	}
	recordCacheLookup(cacheGeneration, false)

	fields, _ := creds.Get(providerID)
	if err := validateFor(op, providerID, modelID, desc.CredentialFields, fields); err != nil {
		return nil, err
	}

	driver, ok := f.drivers[desc.DriverName()]
	if !ok {
		return nil, domain.NewOpError(domain.ErrConfiguration, op, providerID, modelID,
			fmt.Errorf("no driver %q is available", desc.DriverName()))
	}

	params.Temperature = key.temperature
	secrets := fields.SecretValues()
	client, err := driver.Connect(driven.GenerationConfig{
		Provider:    desc,
		Model:       modelID,
		Credentials: fields,
		Params:      params,
	})
	if err != nil {
		return nil, domain.NewOpError(domain.ErrConfiguration, op, providerID, modelID, domain.Redact(err, secrets...))
	}

	h := &ModelHandle{key: key, params: params, client: client, secrets: secrets}
	if prev, found, _ := f.cache.PeekOrAdd(key, h); found && !prev.closed.Load() {
		// Another caller won the race; keep its handle.
		h.release()
		return prev, nil
	} else if found {
		f.cache.Add(key, h)
	}
	logger.Debug("generation handle created for %s/%s (credentials %s)",
		providerID, modelID, shortFingerprint(fingerprint))
	return h, nil
}

// Invoke sends a prompt through the handle. Upstream failures are wrapped
// as ErrGeneration, deadlines as ErrGenerationTimeout. Nothing is retried.
func (f *ModelFactory) Invoke(ctx context.Context, h *ModelHandle, prompt string) (string, error) {
	const op = "invoke"
	if h == nil || h.closed.Load() {
		var provider, model string
		if h != nil {
			provider, model = h.key.provider, h.key.model
		}
		return "", domain.NewOpError(domain.ErrClosed, op, provider, model, nil)
	}

	started := time.Now()
	text, err := h.client.Generate(ctx, prompt)
	if err != nil {
		kind, outcome := domain.ErrGeneration, metrics.OutcomeError
		if domain.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind, outcome = domain.ErrGenerationTimeout, metrics.OutcomeTimeout
		}
		metrics.ObserveUpstream(cacheGeneration, h.key.provider, outcome, started)
		return "", domain.NewOpError(kind, op, h.key.provider, h.key.model, domain.Redact(err, h.secrets...))
	}
	metrics.ObserveUpstream(cacheGeneration, h.key.provider, metrics.OutcomeOK, started)
	return text, nil
}

// Invalidate drops every cached handle of the provider, so the next
// Initialize re-validates credentials.
func (f *ModelFactory) Invalidate(providerID string) {
	for _, key := range f.cache.Keys() {
		if key.provider == providerID {
			f.cache.Remove(key)
		}
	}
}

// Release drops the handles built from one set of credentials.
func (f *ModelFactory) Release(providerID, fingerprint string) {
	for _, key := range f.cache.Keys() {
		if key.provider == providerID && key.fingerprint == fingerprint {
			f.cache.Remove(key)
		}
	}
}

// Len returns the number of cached handles.
func (f *ModelFactory) Len() int {
	return f.cache.Len()
}

// Close releases every cached handle.
func (f *ModelFactory) Close() {
	f.cache.Purge()
}

// validateFor checks credentials against a schema and attaches the
// operation's context to the failure.
func validateFor(op, providerID, modelID string, schema []domain.CredentialField, fields domain.CredentialFields) error {
	err := domain.ValidateCredentials(providerID, schema, fields)
	if err == nil {
		return nil
	}
	var opErr *domain.OpError
	if errors.As(err, &opErr) {
		return domain.NewOpError(opErr.Kind, op, providerID, modelID, opErr.Err)
	}
	return err
}
