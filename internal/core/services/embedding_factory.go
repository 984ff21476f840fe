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

type embeddingKey struct {
	provider    string
	model       string
	fingerprint string
}

// EmbeddingHandle is a vectorisation handle bound to one embedding
// provider, model and credential fingerprint.
type EmbeddingHandle struct {
	key     embeddingKey
	model   domain.EmbeddingModel
	caps    domain.EmbeddingCapabilities
	client  driven.EmbeddingClient
	secrets []string
	closed  atomic.Bool
}

// Signature is the (provider, model) pair tagged onto every vector.
func (h *EmbeddingHandle) Signature() domain.EmbeddingSignature {
	return domain.EmbeddingSignature{ProviderID: h.key.provider, ModelID: h.key.model}
}

// Model returns the embedding model description.
func (h *EmbeddingHandle) Model() domain.EmbeddingModel { return h.model }

// Capabilities returns what the provider supports.
func (h *EmbeddingHandle) Capabilities() domain.EmbeddingCapabilities { return h.caps }

func (h *EmbeddingHandle) release() {
	if h.closed.CompareAndSwap(false, true) {
		if err := h.client.Close(); err != nil {
			logger.Debug("closing %s/%s embedding client: %v", h.key.provider, h.key.model, err)
		}
	}
}

// EmbeddingFactory produces cached embedding handles.
type EmbeddingFactory struct {
	registry driving.ProviderRegistry
	drivers  map[string]driven.EmbeddingProvider
	counter  driven.TokenCounter
	cache    *lru.Cache[embeddingKey, *EmbeddingHandle]
}

// NewEmbeddingFactory creates a factory dispatching to the given drivers by
// name. A non-nil counter truncates inputs to each model's max input.
func NewEmbeddingFactory(registry driving.ProviderRegistry, drivers []driven.EmbeddingProvider,
	counter driven.TokenCounter, cfg FactoryConfig) *EmbeddingFactory {
	byName := make(map[string]driven.EmbeddingProvider, len(drivers))
	for _, d := range drivers {
		byName[d.Name()] = d
	}
	return &EmbeddingFactory{
		registry: registry,
		drivers:  byName,
		counter:  counter,
		cache:    newHandleCache[embeddingKey, *EmbeddingHandle](cacheEmbedding, cfg.MaxHandles),
	}
}

// Initialize returns a handle for the embedding provider and model.
func (f *EmbeddingFactory) Initialize(ctx context.Context, creds CredentialSource,
	providerID, modelID string) (*EmbeddingHandle, error) {
	const op = "initialize embedding"

	desc, err := f.registry.GetEmbeddingProvider(ctx, providerID)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownProvider) {
			return nil, domain.NewOpError(domain.ErrUnknownProvider, op, providerID, modelID, nil)
		}
		return nil, err
	}
	model, ok := desc.Model(modelID)
	if !ok {
		return nil, domain.NewOpError(domain.ErrUnknownModel, op, providerID, modelID, nil)
	}

	fingerprint, _ := creds.Fingerprint(providerID)
	key := embeddingKey{provider: providerID, model: modelID, fingerprint: fingerprint}
	if h, ok := f.cache.Get(key); ok && !h.closed.Load() {
		recordCacheLookup(cacheEmbedding, true)
		return h, nil
	}
	recordCacheLookup(cacheEmbedding, false)

	fields, _ := creds.Get(providerID)
	if err := validateFor(op, providerID, modelID, desc.CredentialFields, fields); err != nil {
		return nil, err
	}

	driver, ok := f.drivers[desc.DriverName()]
	if !ok {
		return nil, domain.NewOpError(domain.ErrConfiguration, op, providerID, modelID,
			fmt.Errorf("no embedding driver %q is available", desc.DriverName()))
	}

	secrets := fields.SecretValues()
	client, err := driver.Connect(driven.EmbeddingConfig{Provider: desc, Model: model, Credentials: fields})
	if err != nil {
		return nil, domain.NewOpError(domain.ErrConfiguration, op, providerID, modelID, domain.Redact(err, secrets...))
	}

	h := &EmbeddingHandle{key: key, model: model, caps: desc.Capabilities, client: client, secrets: secrets}
	if prev, found, _ := f.cache.PeekOrAdd(key, h); found && !prev.closed.Load() {
		h.release()
		return prev, nil
	} else if found {
		f.cache.Add(key, h)
	}
	logger.Debug("embedding handle created for %s/%s (credentials %s)",
		providerID, modelID, shortFingerprint(fingerprint))
	return h, nil
}

// Embed vectorises texts in order. Providers that support batching get one
// call; others get one call per text. Every vector carries the handle's
// signature.
func (f *EmbeddingFactory) Embed(ctx context.Context, h *EmbeddingHandle, texts []string) ([]domain.Vector, error) {
	const op = "embed"
	if h == nil || h.closed.Load() {
		var provider, model string
		if h != nil {
			provider, model = h.key.provider, h.key.model
		}
		return nil, domain.NewOpError(domain.ErrClosed, op, provider, model, nil)
	}
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := f.truncate(h, texts)

	started := time.Now()
	var raw [][]float32
	var err error
	if h.caps.Batch || len(inputs) == 1 {
		raw, err = h.client.EmbedBatch(ctx, inputs)
	} else {
		raw = make([][]float32, 0, len(inputs))
		for _, text := range inputs {
			var vec []float32
			if vec, err = h.client.Embed(ctx, text); err != nil {
				break
			}
			raw = append(raw, vec)
		}
	}
	if err != nil {
		kind, outcome := domain.ErrEmbedding, metrics.OutcomeError
		if domain.IsTimeout(err) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind, outcome = domain.ErrEmbeddingTimeout, metrics.OutcomeTimeout
		}
		metrics.ObserveUpstream(cacheEmbedding, h.key.provider, outcome, started)
		return nil, domain.NewOpError(kind, op, h.key.provider, h.key.model, domain.Redact(err, h.secrets...))
	}
	metrics.ObserveUpstream(cacheEmbedding, h.key.provider, metrics.OutcomeOK, started)

	if len(raw) != len(texts) {
		return nil, domain.NewOpError(domain.ErrEmbedding, op, h.key.provider, h.key.model,
			fmt.Errorf("expected %d vectors, got %d", len(texts), len(raw)))
	}
	sig := h.Signature()
	vectors := make([]domain.Vector, len(raw))
	for i, values := range raw {
		if h.model.Dimensions > 0 && len(values) != h.model.Dimensions {
			return nil, domain.NewOpError(domain.ErrEmbedding, op, h.key.provider, h.key.model,
				fmt.Errorf("vector %d has %d dimensions, want %d", i, len(values), h.model.Dimensions))
		}
		vectors[i] = domain.Vector{Values: values, Signature: sig}
	}
	return vectors, nil
}

// truncate shortens inputs that exceed the model's max input in tokens.
func (f *EmbeddingFactory) truncate(h *EmbeddingHandle, texts []string) []string {
	if f.counter == nil || h.model.MaxInput <= 0 {
		return texts
	}
	out := texts
	copied := false
	for i, text := range texts {
		if f.counter.Count(text) <= h.model.MaxInput {
			continue
		}
		if !copied {
			out = append([]string(nil), texts...)
			copied = true
		}
		out[i] = f.counter.Truncate(text, h.model.MaxInput)
		logger.Debug("embedding input %d truncated to %d tokens for %s", i, h.model.MaxInput, h.key.model)
	}
	return out
}

// Invalidate drops every cached handle of the provider.
func (f *EmbeddingFactory) Invalidate(providerID string) {
	for _, key := range f.cache.Keys() {
		if key.provider == providerID {
			f.cache.Remove(key)
		}
	}
}

// Release drops the handles built from one set of credentials.
func (f *EmbeddingFactory) Release(providerID, fingerprint string) {
	for _, key := range f.cache.Keys() {
		if key.provider == providerID && key.fingerprint == fingerprint {
			f.cache.Remove(key)
		}
	}
}

// Len returns the number of cached handles.
func (f *EmbeddingFactory) Len() int {
	return f.cache.Len()
}

// Close releases every cached handle.
func (f *EmbeddingFactory) Close() {
	f.cache.Purge()
}
