// Package postprocessors provides document content processing implementations.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Pipeline implements the interface.
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline chains PostProcessors and runs them in order over each document.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a new processing pipeline with the given processors.
// Processors are executed in the order provided.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs the document through all processors in order. The first
// processor receives nil chunks and creates them; later ones may rewrite
// them. Chunks left without a document id are attributed to doc.
func (p *Pipeline) Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("postprocessors: %w: nil document", domain.ErrConfiguration)
	}

	var chunks []domain.Chunk
	for _, processor := range p.processors {
		var err error
		chunks, err = processor.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", processor.Name(), err)
		}
	}

	for i := range chunks {
		if chunks[i].DocumentID == "" {
			chunks[i].DocumentID = doc.ID
		}
	}
	return chunks, nil
}

// ProcessAll runs every document through the pipeline and concatenates the
// chunks in document order.
func (p *Pipeline) ProcessAll(ctx context.Context, docs []domain.Document) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for i := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		chunks, err := p.Process(ctx, &docs[i])
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", docs[i].ID, err)
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// Add appends a processor to the pipeline.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of processors in the pipeline.
func (p *Pipeline) Len() int {
	return len(p.processors)
}
