package domain

// EmbeddingSignature identifies the embedding provider and model that
// produced a vector. All entries of one index share a signature.
type EmbeddingSignature struct {
	ProviderID string
	ModelID    string
}

// IsZero returns true if no signature has been established.
func (s EmbeddingSignature) IsZero() bool {
	return s.ProviderID == "" && s.ModelID == ""
}

// String returns "provider/model".
func (s EmbeddingSignature) String() string {
	if s.IsZero() {
		return "<none>"
	}
	return s.ProviderID + "/" + s.ModelID
}

// Vector is an embedding tagged with the signature that produced it.
type Vector struct {
	Values    []float32
	Signature EmbeddingSignature
}

// IndexEntry is one chunk stored in a vector index.
type IndexEntry struct {
	Chunk     Chunk
	Vector    []float32
	Signature EmbeddingSignature
}

// ScoredChunk is a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// RetrievalResult is ordered by descending score.
type RetrievalResult []ScoredChunk

// Chunks returns the chunks without scores.
func (r RetrievalResult) Chunks() []Chunk {
	out := make([]Chunk, len(r))
	for i, sc := range r {
		out[i] = sc.Chunk
	}
	return out
}
