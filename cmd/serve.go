package cmd

import (
	"fmt"

	"keyrunner/internal/mcpserver"

	"github.com/spf13/cobra"
)

// serveCmd exposes the action registry to MCP clients over stdio.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve keyrunner as an MCP server over stdio",
	Long: `Starts an MCP server on stdin/stdout so AI assistants and other MCP
clients can list action words, run single steps in a persistent session and
run whole case files.

Tools:
  list_actions     List registered action words
  run_step         Execute one step in the shared session
  get_variables    Show the session variables
  drain_recovery   Run the session's pending compensations
  run_case         Run the cases in a file or directory

Logs go to stderr so they never corrupt the protocol stream. Pending
compensations are drained when the server stops.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	h, err := newHarness(loadedConfig, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize actions: %w", err)
	}
	defer h.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	return mcpserver.New(h.runner, GetVersion()).Start(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
