package driven

import "github.com/custodia-labs/docqa/internal/core/domain"

// VectorIndex stores chunk embeddings for nearest-neighbour retrieval.
// Every entry in one index shares a single embedding signature.
type VectorIndex interface {
	// Add inserts entries. The first insertion establishes the signature;
	// entries with a different signature are rejected with
	// domain.ErrSignatureMismatch and the index is left unchanged.
	Add(entries []domain.IndexEntry) error

	// Query returns the k entries most similar to vector, highest score
	// first, ties broken by ingestion order. An empty index yields an
	// empty result. k larger than the index returns every entry.
	Query(vector []float32, k int) (domain.RetrievalResult, error)

	// EmbeddingSignature returns the established signature, if any.
	EmbeddingSignature() (domain.EmbeddingSignature, bool)

	// Len returns the number of entries.
	Len() int
}

// VectorIndexFactory creates an empty index.
type VectorIndexFactory func() VectorIndex
