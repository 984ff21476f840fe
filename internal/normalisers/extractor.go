package normalisers

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers/docx"
)

// DefaultMaxFileSize bounds the files the extractor will read.
const DefaultMaxFileSize = 32 << 20

// documentNamespace scopes document ids derived from file paths.
var documentNamespace = uuid.MustParse("3d2f1b8e-6a4c-4f0e-9b7d-5c1a2e8f4b90")

// extensionTypes take precedence over the system MIME table, which varies
// between platforms.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     docx.MIMEType,
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".rst":      "text/plain",
	".csv":      "text/csv",
	".json":     "application/json",
	".xml":      "application/xml",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".go":       "text/x-go",
	".py":       "text/x-python",
	".sh":       "text/x-shellscript",
	".sql":      "text/x-sql",
	".js":       "text/javascript",
	".css":      "text/css",
}

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor turns files on disk into documents.
type Extractor struct {
	registry *Registry
	maxSize  int64
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMaxFileSize overrides DefaultMaxFileSize.
func WithMaxFileSize(n int64) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxSize = n
		}
	}
}

// NewExtractor creates an extractor over registry. A nil registry uses
// DefaultRegistry.
func NewExtractor(registry *Registry, opts ...ExtractorOption) *Extractor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	e := &Extractor{registry: registry, maxSize: DefaultMaxFileSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and returns its text. The document id is
// derived from the absolute path, so the same file always gets the same id.
// Unreadable, oversized and unsupported files fail with
// domain.ErrConfiguration.
func (e *Extractor) Extract(ctx context.Context, path string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w: %w", path, domain.ErrConfiguration, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w: %w", path, domain.ErrConfiguration, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("extract %s: %w: is a directory", path, domain.ErrConfiguration)
	}
	if info.Size() > e.maxSize {
		return nil, fmt.Errorf("extract %s: %w: file is %d bytes, limit is %d",
			path, domain.ErrConfiguration, info.Size(), e.maxSize)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w: %w", path, domain.ErrConfiguration, err)
	}

	mimeType := e.detect(abs, data)
	doc, err := e.registry.Normalise(ctx, &domain.RawDocument{
		URI:      abs,
		MIMEType: mimeType,
		Content:  data,
		Metadata: map[string]any{"size": info.Size()},
	})
	if err != nil {
		return nil, err
	}
	doc.ID = DocumentID(abs)
	doc.URI = abs
	return doc, nil
}

// DocumentID returns the stable id for a document at uri.
func DocumentID(uri string) string {
	return uuid.NewSHA1(documentNamespace, []byte(uri)).String()
}

// detect picks a MIME type from the extension, then the system table, then
// the content. Unknown text falls back to text/plain.
func (e *Extractor) detect(path string, data []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := baseType(mime.TypeByExtension(ext)); t != "" {
		if _, ok := e.registry.Lookup(t); ok {
			return t
		}
	}
	if t := baseType(http.DetectContentType(data)); t != "" {
		if _, ok := e.registry.Lookup(t); ok {
			return t
		}
	}
	if utf8.Valid(data) && !strings.ContainsRune(string(data), 0) {
		return "text/plain"
	}
	return "application/octet-stream"
}

func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(strings.ToLower(t))
}
