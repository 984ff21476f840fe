// Package flat provides an exact, in-memory vector index ranked by cosine
// similarity.
package flat

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

type entry struct {
	chunk  domain.Chunk
	vector []float32
	norm   float64
}

// Index scans every entry on each query. All entries share one
// embedding signature, set by the first Add.
type Index struct {
	mu        sync.RWMutex
	entries   []entry
	signature domain.EmbeddingSignature
	dims      int
}

// New creates an empty index.
func New() *Index {
	return &Index{}
}

// Factory returns a driven.VectorIndexFactory producing flat indices.
func Factory() driven.VectorIndexFactory {
	return func() driven.VectorIndex { return New() }
}

// Add appends entries in order. The whole call is rejected, leaving the
// index unchanged, if any entry's signature differs from the index's (or
// from the first entry's on an empty index) or its dimensions differ.
func (x *Index) Add(entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	sig, dims := x.signature, x.dims
	if len(x.entries) == 0 {
		sig, dims = entries[0].Signature, len(entries[0].Vector)
	}
	if sig.IsZero() {
		return fmt.Errorf("flat index: %w: entries carry no embedding signature", domain.ErrConfiguration)
	}

	added := make([]entry, len(entries))
	for i, e := range entries {
		if e.Signature != sig {
			return domain.NewOpError(domain.ErrSignatureMismatch, "add to index", e.Signature.ProviderID, e.Signature.ModelID,
				fmt.Errorf("index holds vectors from %s", sig))
		}
		if len(e.Vector) == 0 || len(e.Vector) != dims {
			return fmt.Errorf("flat index: %w: entry %d has %d dimensions, want %d",
				domain.ErrConfiguration, i, len(e.Vector), dims)
		}
		added[i] = entry{chunk: e.Chunk, vector: e.Vector, norm: norm(e.Vector)}
	}

	x.entries = append(x.entries, added...)
	x.signature, x.dims = sig, dims
	return nil
}

// Query returns the k entries most similar to vector, highest score first.
// Equal scores keep insertion order. k larger than the index returns every
// entry; an empty index or non-positive k returns an empty result.
func (x *Index) Query(vector []float32, k int) (domain.RetrievalResult, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if k <= 0 || len(x.entries) == 0 {
		return domain.RetrievalResult{}, nil
	}
	if len(vector) != x.dims {
		return nil, fmt.Errorf("flat index: %w: query has %d dimensions, index has %d",
			domain.ErrConfiguration, len(vector), x.dims)
	}

	qn := norm(vector)
	scored := make(domain.RetrievalResult, len(x.entries))
	for i, e := range x.entries {
		scored[i] = domain.ScoredChunk{Chunk: e.chunk, Score: cosine(vector, qn, e.vector, e.norm)}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// EmbeddingSignature returns the signature of the stored vectors, or false
// while the index is empty.
func (x *Index) EmbeddingSignature() (domain.EmbeddingSignature, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.entries) == 0 {
		return domain.EmbeddingSignature{}, false
	}
	return x.signature, true
}

// Len returns the number of entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero length.
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (an * bn)
}
