package cli

import (
	"fmt"

	"github.com/neilberkman/pitchside/cmd/pitchside/mcp"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start MCP server exposing your chat history",
	Long: `Start an MCP (Model Context Protocol) server over stdio that lets an
assistant list, read and summarize your saved conversations.

Configure in your MCP client:
  {
    "mcpServers": {
      "pitchside": {
        "command": "pitchside",
        "args": ["serve-mcp"]
      }
    }
  }
`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	// stdout carries the protocol, so logs go to the log file
	a, err := newApp(ctx, appOptions{logToFile: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	if err := mcp.StartServer(a.history, a.cache, versionInfo); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
