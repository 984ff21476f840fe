package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

var chatOpts queryOptions

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions interactively",
	Long: `Build a retriever over the given files once, then answer questions
until end of input or /quit.

Credentials missing from the environment are prompted for. Secret fields
are read without echo and kept in memory only for this session.

Commands:
  /sources  toggle printing of source passages
  /quit     exit`,
	RunE: runChat,
}

func init() {
	addQueryFlags(chatCmd, &chatOpts)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, _ []string) error {
	if assistantService == nil {
		return errAssistantNotConfigured
	}
	opts, err := chatOpts.withDefaults()
	if err != nil {
		return err
	}
	if err := opts.validate(); err != nil {
		return err
	}

	ctx := cmd.Context()
	in := cmd.InOrStdin()
	reader := bufio.NewReader(in)
	out := cmd.OutOrStdout()

	loadEnvCredentials(ctx)
	if err := promptCredentials(ctx, cmd, in, reader, opts.provider, opts.embeddingProvider); err != nil {
		return err
	}
	if credentialService != nil {
		defer credentialService.ClearAll()
	}

	id, err := buildRetriever(ctx, cmd.ErrOrStderr(), opts)
	if err != nil {
		return err
	}
	defer assistantService.RemoveRetriever(id)

	for {
		fmt.Fprint(out, "> ")
		line, readErr := reader.ReadString('\n')
		question := strings.TrimSpace(line)

		switch question {
		case "":
		case "/quit", "/exit":
			return nil
		case "/sources":
			opts.showSources = !opts.showSources
			fmt.Fprintf(out, "Sources %s\n", onOff(opts.showSources))
		default:
			answer, err := assistantService.Ask(ctx, opts.askRequest(id, question))
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", describeError(err))
				break
			}
			printAnswer(out, answer, opts.showSources)
			fmt.Fprintln(out)
		}

		if errors.Is(readErr, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if readErr != nil {
			return readErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// promptCredentials asks for the fields of each provider that has no
// credentials yet. Fields of a provider registered for both generation and
// embedding are asked once.
func promptCredentials(ctx context.Context, cmd *cobra.Command, in io.Reader, reader *bufio.Reader, ids ...string) error {
	if credentialService == nil || providerRegistry == nil {
		return nil
	}

	asked := make(map[string]bool)
	for _, id := range ids {
		if asked[id] || credentialService.Has(id) {
			continue
		}
		asked[id] = true

		schema := credentialFieldsFor(ctx, id)
		if len(schema) == 0 {
			continue
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Credentials for %s (press Enter to skip optional fields)\n", id)
		fields := make(domain.CredentialFields)
		for _, f := range schema {
			label := f.Name
			if !f.Required {
				label += " (optional)"
			}
			fmt.Fprintf(out, "  %s: ", label)

			var value string
			if f.Type == domain.FieldSecret {
				value = readSecret(in, reader)
				fmt.Fprintln(out)
			} else {
				value = readLine(reader)
			}
			if value != "" {
				fields[f.Name] = value
			}
		}

		if err := credentialService.Set(ctx, id, fields); err != nil {
			return describeError(err)
		}
	}
	return nil
}

// credentialFieldsFor merges a provider's generation and embedding schemas.
func credentialFieldsFor(ctx context.Context, id string) []domain.CredentialField {
	var fields []domain.CredentialField
	index := make(map[string]int)
	add := func(src []domain.CredentialField) {
		for _, f := range src {
			if i, ok := index[f.Name]; ok {
				fields[i].Required = fields[i].Required || f.Required
				continue
			}
			index[f.Name] = len(fields)
			fields = append(fields, f)
		}
	}
	if p, err := providerRegistry.GetProvider(ctx, id); err == nil {
		add(p.CredentialFields)
	}
	if p, err := providerRegistry.GetEmbeddingProvider(ctx, id); err == nil {
		add(p.CredentialFields)
	}
	return fields
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readSecret reads without echo when in is a terminal.
func readSecret(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	return readLine(reader)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
