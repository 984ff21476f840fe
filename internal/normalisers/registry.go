package normalisers

import (
	"context"
	"fmt"
	"sort"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers/docx"
	"github.com/custodia-labs/docqa/internal/normalisers/html"
	"github.com/custodia-labs/docqa/internal/normalisers/markdown"
	"github.com/custodia-labs/docqa/internal/normalisers/plaintext"
)

// Registry maps MIME types to the normaliser with the highest priority.
type Registry struct {
	byMIME map[string]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMIME: make(map[string]driven.Normaliser)}
}

// DefaultRegistry returns a registry with the built-in normalisers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	return r
}

// Register adds a normaliser for each of its MIME types. An existing entry
// is replaced only by a normaliser with a higher priority.
func (r *Registry) Register(n driven.Normaliser) {
	for _, mimeType := range n.SupportedMIMETypes() {
		if cur, ok := r.byMIME[mimeType]; ok && cur.Priority() >= n.Priority() {
			continue
		}
		r.byMIME[mimeType] = n
	}
}

// Lookup returns the normaliser for mimeType.
func (r *Registry) Lookup(mimeType string) (driven.Normaliser, bool) {
	n, ok := r.byMIME[mimeType]
	return n, ok
}

// SupportedMIMETypes returns the registered MIME types, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	types := make([]string, 0, len(r.byMIME))
	for t := range r.byMIME {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Normalise dispatches raw to the normaliser for its MIME type.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, fmt.Errorf("normalise: %w: nil document", domain.ErrConfiguration)
	}
	n, ok := r.Lookup(raw.MIMEType)
	if !ok {
		return nil, fmt.Errorf("normalise %s: %w: unsupported type %q", raw.URI, domain.ErrConfiguration, raw.MIMEType)
	}
	return n.Normalise(ctx, raw)
}
