package postprocessors

import (
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/postprocessors/chunker"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
}

// NewChunkingPipeline returns a pipeline that splits documents with the
// given chunk size and overlap.
func NewChunkingPipeline(r *Registry, chunkSize, overlap int) (*Pipeline, error) {
	proc, err := r.Build("chunker", map[string]any{
		"chunk_size": chunkSize,
		"overlap":    overlap,
	})
	if err != nil {
		return nil, err
	}
	return NewPipeline(proc), nil
}

// ChunkingFactory adapts NewChunkingPipeline to the driven port.
func ChunkingFactory(r *Registry) driven.ChunkingPipelineFactory {
	return func(chunkSize, overlap int) (driven.PostProcessorPipeline, error) {
		return NewChunkingPipeline(r, chunkSize, overlap)
	}
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 1000)
//   - overlap (int): Overlapping characters between chunks (default: 200)
//
// Invalid combinations are rejected rather than clamped.
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...)
}

// getIntFromConfig extracts an int from a generic config map. TOML yields
// int64 and JSON yields float64; a float with a fraction is not an int.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	switch v := cfg[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}
