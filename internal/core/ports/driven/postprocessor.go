package driven

import (
	"context"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// PostProcessor processes document content to produce chunks.
// PostProcessors are chained in a pipeline (e.g., whitespace cleanup, chunking).
type PostProcessor interface {
	// Name returns the processor name for logging and configuration.
	Name() string

	// Process takes a document and returns chunks.
	// If the processor creates chunks (e.g., chunker), it receives nil and returns new chunks.
	// If the processor filters or rewrites chunks, it receives and returns chunks.
	Process(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error)
}

// PostProcessorPipeline chains multiple PostProcessors.
type PostProcessorPipeline interface {
	// Process runs the document through all processors in order.
	// Returns the final chunks after all processing.
	Process(ctx context.Context, doc *domain.Document) ([]domain.Chunk, error)

	// ProcessAll runs every document through the pipeline and returns the
	// chunks in document order.
	ProcessAll(ctx context.Context, docs []domain.Document) ([]domain.Chunk, error)
}

// ChunkingPipelineFactory builds a pipeline that splits documents with the
// given chunk size and overlap, in characters.
type ChunkingPipelineFactory func(chunkSize, overlap int) (PostProcessorPipeline, error)
