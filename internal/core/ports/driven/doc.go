// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - RegistryStore: Provider catalog documents (SQLite, Redis, memory)
//   - GenerationProvider / GenerationClient: Text generation backends
//   - EmbeddingProvider / EmbeddingClient: Embedding backends
//   - VectorIndex: Similarity search over chunk embeddings
//   - TextExtractor: Turns uploaded files into plain text
//   - ConfigStore: Non-secret application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - TokenCounter: Without it, prompt budgets use a character estimate.
//   - PromptStore: Without it, embedded default prompts are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
