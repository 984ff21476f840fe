// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the docqa home directory (~/.docqa).
//
// Adapters:
//   - ConfigStore: TOML settings file (config.toml)
//   - PromptStore: user-editable prompt templates (prompts/*.txt)
//   - Catalog: TOML provider catalog used to seed the registry store
//   - CatalogWatcher: reloads the registry when the catalog file changes
package file
