package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/ports/driving"
)

// snippetLength is how many characters of a source passage are printed.
const snippetLength = 120

// queryOptions are the flags shared by ask and chat.
type queryOptions struct {
	files             []string
	provider          string
	model             string
	embeddingProvider string
	embeddingModel    string
	k                 int
	temperature       float64
	chunkSize         int
	overlap           int
	showSources       bool
}

var askOpts queryOptions

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from local documents",
	Long: `Build a retriever over the given files and answer one question from
the passages most similar to it.

Examples:
  docqa ask "How are handles cached?" -f docs/design.md -f docs/notes.txt \
    --provider openai --model gpt-4o-mini \
    --embedding-provider openai --embedding-model text-embedding-3-small`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	addQueryFlags(askCmd, &askOpts)
	rootCmd.AddCommand(askCmd)
}

func addQueryFlags(cmd *cobra.Command, opts *queryOptions) {
	f := cmd.Flags()
	f.StringSliceVarP(&opts.files, "file", "f", nil, "document to ingest (repeatable)")
	f.StringVar(&opts.provider, "provider", "", "generation provider id")
	f.StringVar(&opts.model, "model", "", "generation model id")
	f.StringVar(&opts.embeddingProvider, "embedding-provider", "", "embedding provider id")
	f.StringVar(&opts.embeddingModel, "embedding-model", "", "embedding model id")
	f.IntVarP(&opts.k, "top-k", "k", 0, "passages to retrieve (default rag.top_k)")
	f.Float64Var(&opts.temperature, "temperature", -1, "sampling temperature (default rag.temperature)")
	f.IntVar(&opts.chunkSize, "chunk-size", 0, "characters per chunk (default ingest.chunk_size)")
	f.IntVar(&opts.overlap, "overlap", -1, "characters shared by consecutive chunks (default ingest.overlap)")
	f.BoolVar(&opts.showSources, "sources", true, "print the passages the answer was built from")
	_ = cmd.MarkFlagRequired("file")
}

// withDefaults fills unset flags from the saved settings.
func (o queryOptions) withDefaults() (queryOptions, error) {
	defaults := domain.DefaultAppSettings()
	settings := &defaults
	if settingsService != nil {
		s, err := settingsService.Get()
		if err != nil {
			return o, fmt.Errorf("failed to get settings: %w", err)
		}
		settings = s
	}

	if o.k <= 0 {
		o.k = settings.RAG.TopK
	}
	if o.temperature < 0 {
		o.temperature = settings.RAG.Temperature
	}
	if o.chunkSize <= 0 {
		o.chunkSize = settings.Ingest.ChunkSize
	}
	if o.overlap < 0 {
		o.overlap = min(settings.Ingest.Overlap, o.chunkSize-1)
	}
	return o, nil
}

func (o queryOptions) validate() error {
	var missing []string
	if o.provider == "" {
		missing = append(missing, "--provider")
	}
	if o.model == "" {
		missing = append(missing, "--model")
	}
	if o.embeddingProvider == "" {
		missing = append(missing, "--embedding-provider")
	}
	if o.embeddingModel == "" {
		missing = append(missing, "--embedding-model")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required flags not set: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (o queryOptions) buildRequest() driving.BuildRequest {
	return driving.BuildRequest{
		SourcePaths:       o.files,
		ChunkSize:         o.chunkSize,
		Overlap:           o.overlap,
		EmbeddingProvider: o.embeddingProvider,
		EmbeddingModel:    o.embeddingModel,
	}
}

func (o queryOptions) askRequest(retrieverID, question string) driving.AskRequest {
	return driving.AskRequest{
		RetrieverID: retrieverID,
		Question:    question,
		K:           o.k,
		Provider:    o.provider,
		Model:       o.model,
		Temperature: o.temperature,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	if assistantService == nil {
		return errAssistantNotConfigured
	}
	opts, err := askOpts.withDefaults()
	if err != nil {
		return err
	}
	if err := opts.validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	loadEnvCredentials(ctx)

	id, err := buildRetriever(ctx, cmd.ErrOrStderr(), opts)
	if err != nil {
		return err
	}
	defer assistantService.RemoveRetriever(id)

	answer, err := assistantService.Ask(ctx, opts.askRequest(id, strings.Join(args, " ")))
	if err != nil {
		return describeError(err)
	}
	printAnswer(cmd.OutOrStdout(), answer, opts.showSources)
	return nil
}

func buildRetriever(ctx context.Context, status io.Writer, opts queryOptions) (string, error) {
	id, err := assistantService.BuildRetriever(ctx, opts.buildRequest())
	if err != nil {
		return "", describeError(err)
	}
	info, err := assistantService.Retriever(id)
	if err == nil {
		fmt.Fprintf(status, "Indexed %d chunks from %d files with %s\n",
			info.Chunks, len(info.Sources), info.Signature)
	}
	return id, nil
}

func printAnswer(w io.Writer, answer *domain.Answer, showSources bool) {
	fmt.Fprintln(w, strings.TrimSpace(answer.Text))
	if !showSources || len(answer.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Sources:")
	for i, src := range answer.Sources {
		fmt.Fprintf(w, "  [%d] score %.3f  %s\n", i+1, src.Score, snippet(src.Chunk.Text))
	}
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength]) + "..."
}

// describeError adds a hint for errors the user can fix from the command line.
func describeError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownProvider):
		return fmt.Errorf("%w (see 'docqa providers list')", err)
	case errors.Is(err, domain.ErrUnknownModel):
		return fmt.Errorf("%w (see 'docqa providers show <id>')", err)
	case errors.Is(err, domain.ErrValidation):
		return fmt.Errorf("%w (set the provider's environment variables or use 'docqa chat')", err)
	default:
		return err
	}
}
