package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRetrieverState_String(t *testing.T) {
	assert.Equal(t, "unbuilt", RetrieverUnbuilt.String())
	assert.Equal(t, "building", RetrieverBuilding.String())
	assert.Equal(t, "ready", RetrieverReady.String())
	assert.Equal(t, "stale", RetrieverStale.String())
	assert.Equal(t, "unknown", RetrieverState(42).String())
}

func TestRetrieverParams_Validate(t *testing.T) {
	valid := RetrieverParams{ChunkSize: 500, Overlap: 100, EmbeddingProvider: "openai", EmbeddingModel: "m"}

	tests := []struct {
		name    string
		mutate  func(*RetrieverParams)
		wantErr bool
	}{
		{"valid", func(*RetrieverParams) {}, false},
		{"zero overlap", func(p *RetrieverParams) { p.Overlap = 0 }, false},
		{"zero chunk size", func(p *RetrieverParams) { p.ChunkSize = 0 }, true},
		{"negative overlap", func(p *RetrieverParams) { p.Overlap = -1 }, true},
		{"overlap equals size", func(p *RetrieverParams) { p.Overlap = 500 }, true},
		{"overlap exceeds size", func(p *RetrieverParams) { p.Overlap = 600 }, true},
		{"missing provider", func(p *RetrieverParams) { p.EmbeddingProvider = "" }, true},
		{"missing model", func(p *RetrieverParams) { p.EmbeddingModel = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRetrieverParams_Signature(t *testing.T) {
	p := RetrieverParams{EmbeddingProvider: "ollama", EmbeddingModel: "nomic-embed-text"}
	assert.Equal(t, EmbeddingSignature{ProviderID: "ollama", ModelID: "nomic-embed-text"}, p.Signature())
}
