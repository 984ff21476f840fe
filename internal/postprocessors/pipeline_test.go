package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined chunks.
type mockProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		return m.chunks, nil
	}
	return chunks, nil
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.Len() != 0 {
		t.Errorf("expected 0 processors, got %d", p.Len())
	}
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	p.Add(&mockProcessor{name: "test"})

	if p.Len() != 1 {
		t.Errorf("expected 1 processor, got %d", p.Len())
	}
}

func TestPipeline_Process_NilDocument(t *testing.T) {
	p := NewPipeline()

	_, err := p.Process(context.Background(), nil)
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error for nil document, got %v", err)
	}
}

func TestPipeline_Process_MultipleProcessors(t *testing.T) {
	secondChunks := []domain.Chunk{
		{ID: "chunk-1", Text: "modified"},
		{ID: "chunk-2", Text: "added"},
	}

	p := NewPipeline(
		&mockProcessor{name: "first", chunks: []domain.Chunk{{ID: "chunk-1", Text: "first"}}},
		&mockProcessor{name: "second", chunks: secondChunks},
	)

	chunks, err := p.Process(context.Background(), &domain.Document{ID: "doc", Content: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 || chunks[0].Text != "modified" {
		t.Errorf("expected output of last processor, got %v", chunks)
	}
	for _, c := range chunks {
		if c.DocumentID != "doc" {
			t.Errorf("chunk %s not attributed to doc: %q", c.ID, c.DocumentID)
		}
	}
}

func TestPipeline_Process_Error(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "broken", err: errors.New("boom")})

	_, err := p.Process(context.Background(), &domain.Document{ID: "doc"})
	if err == nil || err.Error() != "processor broken: boom" {
		t.Errorf("expected wrapped processor error, got %v", err)
	}
}

func TestPipeline_ProcessAll(t *testing.T) {
	r := NewRegistry()
	RegisterDefaults(r)
	p, err := NewChunkingPipeline(r, 50, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	docs := []domain.Document{
		{ID: "a", Content: "First document has a few words in it so that it needs two chunks."},
		{ID: "b", Content: "Second."},
	}

	chunks, err := p.ProcessAll(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	if chunks[0].DocumentID != "a" || chunks[len(chunks)-1].DocumentID != "b" {
		t.Errorf("chunks not in document order: %+v", chunks)
	}
}

func TestPipeline_ProcessAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline().ProcessAll(ctx, []domain.Document{{ID: "a"}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
