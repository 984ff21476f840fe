package domain

import (
	"fmt"
	"time"
)

// RetrieverState is a retriever's lifecycle position.
type RetrieverState int

// Retriever states. Unbuilt -> Building -> Ready, and Ready -> Stale when
// chunking or embedding parameters change.
const (
	RetrieverUnbuilt RetrieverState = iota
	RetrieverBuilding
	RetrieverReady
	RetrieverStale
)

// String returns the state name.
func (s RetrieverState) String() string {
	switch s {
	case RetrieverUnbuilt:
		return "unbuilt"
	case RetrieverBuilding:
		return "building"
	case RetrieverReady:
		return "ready"
	case RetrieverStale:
		return "stale"
	default:
		return unknownDescription
	}
}

// RetrieverParams are the inputs that determine an index's contents.
type RetrieverParams struct {
	ChunkSize         int
	Overlap           int
	EmbeddingProvider string
	EmbeddingModel    string
}

// Validate enforces chunkSize > 0 and 0 <= overlap < chunkSize.
func (p RetrieverParams) Validate() error {
	if p.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrConfiguration, p.ChunkSize)
	}
	if p.Overlap < 0 || p.Overlap >= p.ChunkSize {
		return fmt.Errorf("%w: overlap must satisfy 0 <= overlap < chunk size, got %d (chunk size %d)",
			ErrConfiguration, p.Overlap, p.ChunkSize)
	}
	if p.EmbeddingProvider == "" || p.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding provider and model are required", ErrConfiguration)
	}
	return nil
}

// Signature returns the embedding signature these params produce.
func (p RetrieverParams) Signature() EmbeddingSignature {
	return EmbeddingSignature{ProviderID: p.EmbeddingProvider, ModelID: p.EmbeddingModel}
}

// RetrieverInfo is a snapshot of a retriever for display.
type RetrieverInfo struct {
	ID        string
	State     RetrieverState
	Params    RetrieverParams
	Sources   []string
	Chunks    int
	BuiltAt   time.Time
	Signature EmbeddingSignature
}
