// Package plaintext provides the fallback Normaliser for text files.
package plaintext

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text documents.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/x-go",
		"text/x-python",
		"text/x-shellscript",
		"text/x-sql",
		"text/yaml",
		"text/toml",
		"text/javascript",
		"text/css",
		"application/json",
		"application/xml",
	}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 5 // Fallback normaliser
}

// Normalise returns the text with a leading byte order mark removed and
// line endings normalised to \n. The document ID is left for the caller.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, fmt.Errorf("plaintext: %w: nil document", domain.ErrConfiguration)
	}

	return &domain.Document{
		URI:      raw.URI,
		Title:    titleFor(raw),
		Content:  Clean(string(raw.Content)),
		Metadata: withMIMEType(raw.Metadata, raw.MIMEType),
	}, nil
}

// Clean strips a UTF-8 BOM and converts CRLF and CR line endings to LF.
func Clean(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// TitleFromURI turns "notes/release_plan-v2.txt" into "release plan v2".
func TitleFromURI(uri string) string {
	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	return strings.NewReplacer("_", " ", "-", " ").Replace(filename)
}

// titleFor prefers a "title" metadata entry over the file name.
func titleFor(raw *domain.RawDocument) string {
	if title, ok := raw.Metadata["title"].(string); ok && title != "" {
		return title
	}
	return TitleFromURI(raw.URI)
}

func withMIMEType(src map[string]any, mimeType string) map[string]any {
	dst := make(map[string]any, len(src)+1)
	for k, v := range src {
		dst[k] = v
	}
	dst["mime_type"] = mimeType
	return dst
}
