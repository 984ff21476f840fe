package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driven/config/file"
	"github.com/custodia-labs/docqa/internal/core/domain"
	"github.com/custodia-labs/docqa/internal/core/services"
)

// degradable is implemented by registries that can report serving the
// built-in fallback catalog.
type degradable interface {
	Degraded(ctx context.Context) bool
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage the provider registry",
	Long: `List, inspect and seed the generation and embedding providers known
to docqa. The registry is read from the configured backend and cached; use
'docqa providers refresh' to reload it immediately.`,
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers and their models",
	RunE:  runProvidersList,
}

var providersShowCmd = &cobra.Command{
	Use:   "show <provider-id>",
	Short: "Show a provider's models and credential fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runProvidersShow,
}

var providersRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload the registry from its backing store",
	RunE:  runProvidersRefresh,
}

var providersSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Write provider records into the registry store",
	Long: `Seed the registry store from a TOML catalog. Without --catalog the
built-in catalog is written. Existing records with the same id are
replaced; records the catalog does not name are kept.`,
	RunE: runProvidersSeed,
}

var providersExportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Write the current registry as a TOML catalog",
	Long: `Write the providers currently served by the registry to a TOML
catalog, by default ~/.docqa/catalog.toml. Edit the file and set
registry.catalog to have docqa re-seed the store whenever it changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProvidersExport,
}

var providersRemoveCmd = &cobra.Command{
	Use:   "remove <provider-id>",
	Short: "Remove a provider record from the registry store",
	Long: `Remove a generation provider record, or with --embedding the embedding
provider record of the same id. Built-in providers come back if the store
ends up empty.`,
	Args: cobra.ExactArgs(1),
	RunE: runProvidersRemove,
}

func init() {
	providersListCmd.Flags().String("kind", "", "generation or embedding (default both)")
	providersSeedCmd.Flags().String("catalog", "", "TOML catalog to seed from")
	providersRemoveCmd.Flags().Bool("embedding", false, "remove the embedding provider record")

	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersShowCmd)
	providersCmd.AddCommand(providersRefreshCmd)
	providersCmd.AddCommand(providersSeedCmd)
	providersCmd.AddCommand(providersExportCmd)
	providersCmd.AddCommand(providersRemoveCmd)
	rootCmd.AddCommand(providersCmd)
}

func runProvidersList(cmd *cobra.Command, _ []string) error {
	if providerRegistry == nil {
		return errRegistryNotConfigured
	}
	kind, _ := cmd.Flags().GetString("kind")
	if kind != "" && kind != "generation" && kind != "embedding" {
		return fmt.Errorf("--kind must be generation or embedding, got %q", kind)
	}

	ctx := cmd.Context()
	loadEnvCredentials(ctx)
	warnIfDegraded(cmd)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tNAME\tMODELS\tCONFIGURED")
	if kind != "embedding" {
		for _, p := range providerRegistry.ListProviders(ctx) {
			fmt.Fprintf(w, "%s\tgeneration\t%s\t%s\t%s\n",
				p.ID, p.Name, strings.Join(p.Models, ", "), yesNo(configured(p.ID)))
		}
	}
	if kind != "generation" {
		for _, p := range providerRegistry.ListEmbeddingProviders(ctx) {
			models := make([]string, len(p.Models))
			for i, m := range p.Models {
				models[i] = m.ID
			}
			fmt.Fprintf(w, "%s\tembedding\t%s\t%s\t%s\n",
				p.ID, p.Name, strings.Join(models, ", "), yesNo(configured(p.ID)))
		}
	}
	return w.Flush()
}

func runProvidersShow(cmd *cobra.Command, args []string) error {
	if providerRegistry == nil {
		return errRegistryNotConfigured
	}
	ctx := cmd.Context()
	id := args[0]

	gen, genErr := providerRegistry.GetProvider(ctx, id)
	emb, embErr := providerRegistry.GetEmbeddingProvider(ctx, id)
	if genErr != nil && embErr != nil {
		return genErr
	}

	out := cmd.OutOrStdout()
	if genErr == nil {
		fmt.Fprintf(out, "[Generation] %s (%s)\n", gen.Name, gen.ID)
		fmt.Fprintf(out, "  Driver:   %s\n", gen.DriverName())
		if gen.DefaultBaseURL != "" {
			fmt.Fprintf(out, "  Base URL: %s\n", gen.DefaultBaseURL)
		}
		fmt.Fprintf(out, "  Models:   %s\n", strings.Join(gen.Models, ", "))
		if gen.Capabilities.CustomModels {
			fmt.Fprintln(out, "            (any model id accepted)")
		}
		fmt.Fprintf(out, "  Streaming: %s\n", yesNo(gen.Capabilities.Streaming))
		printCredentialFields(cmd, gen.CredentialFields)
		fmt.Fprintln(out)
	}
	if embErr == nil {
		fmt.Fprintf(out, "[Embedding] %s (%s)\n", emb.Name, emb.ID)
		fmt.Fprintf(out, "  Driver:   %s\n", emb.DriverName())
		if emb.DefaultBaseURL != "" {
			fmt.Fprintf(out, "  Base URL: %s\n", emb.DefaultBaseURL)
		}
		fmt.Fprintln(out, "  Models:")
		for _, m := range emb.Models {
			fmt.Fprintf(out, "    %s (%d dims, %d max input tokens)\n", m.ID, m.Dimensions, m.MaxInput)
		}
		fmt.Fprintf(out, "  Batch: %s\n", yesNo(emb.Capabilities.Batch))
		printCredentialFields(cmd, emb.CredentialFields)
		fmt.Fprintln(out)
	}
	return nil
}

func runProvidersRefresh(cmd *cobra.Command, _ []string) error {
	if providerRegistry == nil {
		return errRegistryNotConfigured
	}
	ctx := cmd.Context()
	if err := providerRegistry.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh failed, still serving the previous catalog: %w", err)
	}
	cmd.Printf("Registry reloaded: %d generation, %d embedding providers\n",
		len(providerRegistry.ListProviders(ctx)), len(providerRegistry.ListEmbeddingProviders(ctx)))
	return nil
}

func runProvidersSeed(cmd *cobra.Command, _ []string) error {
	if providerRegistry == nil {
		return errRegistryNotConfigured
	}
	if registryStore == nil {
		return errors.New("registry store not configured")
	}
	ctx := cmd.Context()

	path, _ := cmd.Flags().GetString("catalog")
	var catalog *file.Catalog
	if path != "" {
		c, err := file.LoadCatalog(path)
		if err != nil {
			return err
		}
		catalog = c
	} else {
		providers, embedding := services.DefaultCatalog()
		catalog = &file.Catalog{Providers: providers, EmbeddingProviders: embedding}
	}

	res, err := catalog.Seed(ctx, registryStore)
	if err != nil {
		return err
	}
	if err := providerRegistry.Refresh(ctx); err != nil {
		return err
	}
	cmd.Printf("Seeded %d generation and %d embedding providers\n", res.Providers, res.EmbeddingProviders)
	return nil
}

func runProvidersExport(cmd *cobra.Command, args []string) error {
	if providerRegistry == nil {
		return errRegistryNotConfigured
	}
	ctx := cmd.Context()

	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		p, err := file.DefaultCatalogPath()
		if err != nil {
			return err
		}
		path = p
	}

	catalog := &file.Catalog{}
	for _, p := range providerRegistry.ListProviders(ctx) {
		catalog.Providers = append(catalog.Providers, domain.RecordFromProvider(p))
	}
	for _, p := range providerRegistry.ListEmbeddingProviders(ctx) {
		catalog.EmbeddingProviders = append(catalog.EmbeddingProviders, domain.RecordFromEmbeddingProvider(p))
	}

	if err := file.WriteCatalog(path, catalog); err != nil {
		return err
	}
	cmd.Printf("Wrote %d generation and %d embedding providers to %s\n",
		len(catalog.Providers), len(catalog.EmbeddingProviders), path)
	return nil
}

func runProvidersRemove(cmd *cobra.Command, args []string) error {
	if providerRegistry == nil {
		return errRegistryNotConfigured
	}
	ctx := cmd.Context()
	id := args[0]
	embedding, _ := cmd.Flags().GetBool("embedding")

	kind := "generation"
	remove := providerRegistry.DeleteProvider
	if embedding {
		kind = "embedding"
		remove = providerRegistry.DeleteEmbeddingProvider
	}
	if err := remove(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("no %s provider %q in the registry store: %w", kind, id, err)
		}
		return err
	}
	cmd.Printf("Removed %s provider %s\n", kind, id)
	return nil
}

func printCredentialFields(cmd *cobra.Command, fields []domain.CredentialField) {
	out := cmd.OutOrStdout()
	if len(fields) == 0 {
		fmt.Fprintln(out, "  Credentials: none")
		return
	}
	fmt.Fprintln(out, "  Credentials:")
	for _, f := range fields {
		req := "optional"
		if f.Required {
			req = "required"
		}
		line := fmt.Sprintf("    %s (%s, %s)", f.Name, f.Type, req)
		if f.Env != "" {
			line += " from $" + f.Env
		}
		fmt.Fprintln(out, line)
	}
}

func warnIfDegraded(cmd *cobra.Command) {
	if d, ok := providerRegistry.(degradable); ok && d.Degraded(cmd.Context()) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Warning: registry store unavailable, showing built-in providers")
	}
}

func configured(providerID string) bool {
	return credentialService != nil && credentialService.Has(providerID)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
