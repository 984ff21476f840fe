package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Retriever is a queryable index over a set of source documents, with the
// lifecycle Unbuilt, Building, Ready and Stale. Changing parameters of a
// Ready retriever makes it Stale until it is rebuilt.
type Retriever struct {
	mu      sync.RWMutex
	id      string
	state   domain.RetrieverState
	params  domain.RetrieverParams
	sources []string
	docs    []domain.Document
	titles  map[string]string
	index   driven.VectorIndex
	builtAt time.Time

	// indexParams are the params index was built from.
	indexParams domain.RetrieverParams
}

func newRetriever(id string, params domain.RetrieverParams, sources []string, docs []domain.Document) *Retriever {
	titles := make(map[string]string, len(docs))
	for _, d := range docs {
		if d.Title != "" {
			titles[d.ID] = d.Title
		}
	}
	return &Retriever{
		id:      id,
		state:   domain.RetrieverUnbuilt,
		params:  params,
		sources: sources,
		docs:    docs,
		titles:  titles,
	}
}

// ID returns the retriever handle.
func (r *Retriever) ID() string { return r.id }

// State returns the lifecycle state.
func (r *Retriever) State() domain.RetrieverState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Info returns a snapshot for display.
func (r *Retriever) Info() domain.RetrieverInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info := domain.RetrieverInfo{
		ID:      r.id,
		State:   r.state,
		Params:  r.params,
		Sources: append([]string(nil), r.sources...),
		BuiltAt: r.builtAt,
	}
	if r.index != nil {
		info.Chunks = r.index.Len()
		info.Signature, _ = r.index.EmbeddingSignature()
	}
	return info
}

// beginBuild moves the retriever to Building and returns the inputs.
func (r *Retriever) beginBuild() (domain.RetrieverParams, []domain.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.RetrieverBuilding {
		return domain.RetrieverParams{}, nil, fmt.Errorf("retriever %s: %w: build already in progress",
			r.id, domain.ErrConfiguration)
	}
	r.state = domain.RetrieverBuilding
	return r.params, r.docs, nil
}

// finishBuild installs a built index, unless the params changed while it
// was building, in which case the retriever is Stale.
func (r *Retriever) finishBuild(built domain.RetrieverParams, index driven.VectorIndex, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.index = index
	r.indexParams = built
	r.builtAt = at
	if built == r.params {
		r.state = domain.RetrieverReady
	} else {
		r.state = domain.RetrieverStale
	}
}

// failBuild records a failed build and keeps the previous index. A
// retriever that was never built returns to Unbuilt. One whose index still
// matches its params returns to Ready, so a transient upstream failure can
// simply be retried; otherwise it stays Stale.
func (r *Retriever) failBuild() {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.index == nil:
		r.state = domain.RetrieverUnbuilt
	case r.indexParams == r.params:
		r.state = domain.RetrieverReady
	default:
		r.state = domain.RetrieverStale
	}
}

// update changes the build parameters. A Ready retriever whose
// parameters change becomes Stale.
func (r *Retriever) update(params domain.RetrieverParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if params == r.params {
		return nil
	}
	r.params = params
	if r.state == domain.RetrieverReady {
		r.state = domain.RetrieverStale
	}
	return nil
}

// queryable returns the index and params of a Ready retriever.
func (r *Retriever) queryable() (driven.VectorIndex, domain.RetrieverParams, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	switch r.state {
	case domain.RetrieverReady:
		return r.index, r.params, nil
	case domain.RetrieverStale:
		return nil, domain.RetrieverParams{}, fmt.Errorf("retriever %s: %w: parameters changed, rebuild before asking",
			r.id, domain.ErrStaleIndex)
	default:
		return nil, domain.RetrieverParams{}, fmt.Errorf("retriever %s: %w: retriever is %s",
			r.id, domain.ErrConfiguration, r.state)
	}
}
