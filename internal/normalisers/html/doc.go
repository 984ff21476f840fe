// Package html provides a Normaliser implementation for HTML documents.
// It extracts readable text content from HTML, stripping tags, scripts,
// styles, and decoding entities before the text is chunked and embedded.
package html
