package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:     "delete <session-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a conversation",
	Long: `Delete a saved conversation on the server and from the local cache.

Examples:
  pitchside history delete 6650f2a1
  pitchside history delete 6650f2a1 --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	historyCmd.AddCommand(deleteCmd)
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sessionID := args[0]

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	if !deleteYes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete conversation %s?", sessionID)) {
		fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
		return nil
	}

	snap, err := a.history.DeleteSession(ctx, sessionID)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s (%d conversation(s) left)\n", sessionID, len(snap.Sessions))
	return nil
}
