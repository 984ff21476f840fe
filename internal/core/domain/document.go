package domain

// Document is a source document after text extraction.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// URI is the original location (file path, URL, etc).
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full plain-text content before chunking.
	Content string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any
}

// Chunk is a contiguous span of a document's text produced for retrieval.
// Chunks are immutable once created.
type Chunk struct {
	// ID is derived from the document id and offsets, so re-splitting
	// the same text yields the same ids.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Index is the ordinal position within the document.
	Index int

	// Text is the chunk content.
	Text string

	// Start is the offset of the first character, in runes.
	Start int

	// End is the offset one past the last character, in runes.
	End int
}

// Len returns the chunk length in characters.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Overlap returns how many characters c shares with next.
func (c Chunk) Overlap(next Chunk) int {
	if c.DocumentID != next.DocumentID || next.Start >= c.End {
		return 0
	}
	end := c.End
	if next.End < end {
		end = next.End
	}
	return end - next.Start
}
