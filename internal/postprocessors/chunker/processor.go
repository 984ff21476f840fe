// Package chunker provides a boundary-aware text chunking processor.
package chunker

import (
	"context"
	"fmt"
	"unicode"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

// maxStartShift bounds how far a chunk start moves back to a word boundary.
const maxStartShift = 32

// chunkNamespace scopes deterministic chunk ids.
var chunkNamespace = uuid.MustParse("6f1c8a52-3b0e-4d57-9a53-0f4e2b7d9c11")

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Processor splits document content into overlapping chunks.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a new chunker processor with the given options.
// Returns domain.ErrConfiguration unless 0 <= overlap < chunkSize.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := validate(p.chunkSize, p.overlap); err != nil {
		return nil, err
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	return Split(doc.ID, doc.Content, p.chunkSize, p.overlap)
}

// Split cuts text into chunks of at most chunkSize characters. Each chunk
// ends at the best boundary in its second half (paragraph break, then
// sentence end, then line break, then whitespace), falling back to a hard
// cut. Consecutive chunks share at least overlap characters. Offsets are in
// runes. The result depends only on the inputs.
func Split(docID, text string, chunkSize, overlap int) ([]domain.Chunk, error) {
	if err := validate(chunkSize, overlap); err != nil {
		return nil, err
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	// Ends never fall before start+minAdvance, so each step makes progress.
	minAdvance := max(overlap+1, chunkSize/2)

	chunks := make([]domain.Chunk, 0, n/(chunkSize-overlap)+1)
	start := 0
	for {
		end := start + chunkSize
		if end >= n {
			end = n
		} else if b := findBoundary(runes, start+minAdvance, end); b > 0 {
			end = b
		}

		chunks = append(chunks, domain.Chunk{
			ID:         chunkID(docID, start, end),
			DocumentID: docID,
			Index:      len(chunks),
			Text:       string(runes[start:end]),
			Start:      start,
			End:        end,
		})

		if end == n {
			return chunks, nil
		}
		start = alignStart(runes, start+1, end-overlap)
	}
}

func validate(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("chunker: %w: chunk size must be positive, got %d", domain.ErrConfiguration, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("chunker: %w: overlap %d must satisfy 0 <= overlap < chunk size %d",
			domain.ErrConfiguration, overlap, chunkSize)
	}
	return nil
}

// boundary reports whether a chunk may end just before position p.
type boundary func(runes []rune, p int) bool

// boundaries in preference order.
var boundaries = []boundary{
	// paragraph break
	func(r []rune, p int) bool { return p >= 2 && r[p-1] == '\n' && r[p-2] == '\n' },
	// sentence end followed by whitespace
	func(r []rune, p int) bool {
		return p >= 2 && unicode.IsSpace(r[p-1]) && isSentenceEnd(r[p-2])
	},
	// line break
	func(r []rune, p int) bool { return p >= 1 && r[p-1] == '\n' },
	// word break
	func(r []rune, p int) bool { return p >= 1 && unicode.IsSpace(r[p-1]) },
}

// findBoundary returns the latest end position in [lo, hi] matching the
// most preferred boundary kind, or 0 if none does.
func findBoundary(runes []rune, lo, hi int) int {
	for _, isBoundary := range boundaries {
		for p := hi; p >= lo; p-- {
			if isBoundary(runes, p) {
				return p
			}
		}
	}
	return 0
}

// alignStart moves a chunk start back to the beginning of a word, never
// past floor and never more than maxStartShift characters. Moving back only
// grows the overlap with the previous chunk.
func alignStart(runes []rune, floor, start int) int {
	lowest := max(floor, start-maxStartShift)
	for q := start; q >= lowest; q-- {
		if q == 0 || (unicode.IsSpace(runes[q-1]) && !unicode.IsSpace(runes[q])) {
			return q
		}
	}
	return start
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？':
		return true
	default:
		return false
	}
}

func chunkID(docID string, start, end int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s:%d:%d", docID, start, end))).String()
}
