package cli

import (
	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Continue a saved conversation",
	Long: `Open the chat with a saved conversation loaded so you can keep going.

Find ids with 'pitchside history list'.

Examples:
  pitchside resume 6650f1c2-3f0a-4f7a-9a55-0c1d2e3f4a5b`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	return launchTUI(cmd, args[0])
}
