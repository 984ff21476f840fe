package driven

// PromptStore provides access to prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible
	// default or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names. Templates use text/template syntax.
const (
	// PromptRAGAnswer grounds an answer in retrieved passages.
	// Fields: .Question, .Passages (each with .Number, .Source, .Text).
	PromptRAGAnswer = "rag_answer"

	// PromptRAGNoContext is used when retrieval found nothing. It must tell
	// the model that no context was found rather than invite a guess.
	// Fields: .Question.
	PromptRAGNoContext = "rag_no_context"
)
