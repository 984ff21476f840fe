// Package docx provides a Normaliser for Word (.docx) documents.
package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driven"
	"github.com/custodia-labs/docqa/internal/normalisers/plaintext"
)

// MIMEType is the Office Open XML word processing type.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles DOCX documents.
type Normaliser struct{}

// New creates a new DOCX normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser
}

// Normalise reads word/document.xml from the archive. Paragraphs are
// separated by blank lines and the title comes from docProps/core.xml.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, fmt.Errorf("docx: %w: nil document", domain.ErrConfiguration)
	}

	reader, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("docx: %w: %s is not a zip archive: %w", domain.ErrConfiguration, raw.URI, err)
	}

	content, err := extractDocumentText(reader)
	if err != nil {
		return nil, fmt.Errorf("docx: %s: %w", raw.URI, err)
	}

	title := extractTitle(reader)
	if title == "" {
		title = plaintext.TitleFromURI(raw.URI)
	}

	meta := make(map[string]any, len(raw.Metadata)+2)
	for k, v := range raw.Metadata {
		meta[k] = v
	}
	meta["mime_type"] = raw.MIMEType
	meta["format"] = "docx"

	return &domain.Document{
		URI:      raw.URI,
		Title:    title,
		Content:  content,
		Metadata: meta,
	}, nil
}

// readPart returns the bytes of a named archive member, or nil if absent.
func readPart(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, nil
}

// documentXML represents the structure of word/document.xml.
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func extractDocumentText(reader *zip.Reader) (string, error) {
	data, err := readPart(reader, "word/document.xml")
	if err != nil {
		return "", fmt.Errorf("%w: read document: %w", domain.ErrConfiguration, err)
	}
	if data == nil {
		return "", nil
	}

	var doc documentXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("%w: parse document: %w", domain.ErrConfiguration, err)
	}

	paras := make([]string, 0, len(doc.Body.Paragraphs))
	for _, para := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, r := range para.Runs {
			for _, text := range r.Text {
				b.WriteString(text.Content)
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			paras = append(paras, s)
		}
	}
	return strings.Join(paras, "\n\n"), nil
}

// coreXML represents the structure of docProps/core.xml.
type coreXML struct {
	Title string `xml:"title"`
}

// extractTitle returns the document title property, or "".
func extractTitle(reader *zip.Reader) string {
	data, err := readPart(reader, "docProps/core.xml")
	if err != nil || data == nil {
		return ""
	}
	var core coreXML
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
