package domain

// RawDocument is the bytes of an uploaded file before text extraction.
type RawDocument struct {
	// URI is the original location (file path, URL, etc).
	URI string

	// MIMEType is the content type (e.g., "text/markdown").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains extractor-specific key-value pairs.
	Metadata map[string]any
}
