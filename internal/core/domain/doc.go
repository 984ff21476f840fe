// Package domain defines the core business entities for docqa.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ProviderDescriptor / EmbeddingProviderDescriptor: registry catalog entries
//   - CredentialFields: session-scoped secrets for one provider
//   - Document and Chunk: extracted text and its retrieval spans
//   - IndexEntry and EmbeddingSignature: vectors and their provenance
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
