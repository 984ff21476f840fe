package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docqa/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes the list_providers, build_retriever, retriever_status
and ask tools. Credentials are read from the environment once at startup
and remain in memory for the lifetime of the server.

By default, the server communicates over stdio using JSON-RPC. Use --port
to start an HTTP server instead. The server holds a single session: in HTTP
mode every connected client sees the same retrievers and uses the same
credentials, so only expose the port to clients that may share them.

Examples:
  # Stdio mode (default)
  docqa mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  docqa mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "docqa": {
        "command": "/path/to/docqa",
        "args": ["mcp", "serve"],
        "env": {"OPENAI_API_KEY": "..."}
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	loadEnvCredentials(cmd.Context())

	ports := &mcp.Ports{
		Registry:    providerRegistry,
		Assistant:   assistantService,
		Credentials: credentialService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		fmt.Fprintln(cmd.ErrOrStderr(), "All HTTP clients share this server's session, retrievers and credentials.")
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
