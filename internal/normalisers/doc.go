// Package normalisers provides implementations of the Normaliser interface
// for various document formats. Each normaliser knows how to extract text
// content from a specific MIME type.
//
// Normalisers are registered with a Registry, which picks the highest
// priority normaliser for a MIME type. The Extractor reads uploaded files,
// detects their type and runs them through the registry.
package normalisers
