package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var quotaReset bool

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show today's free message usage",
	Long: `Show how many free messages were used today. The counter resets at
local midnight. Logged-in chats are not counted.`,
	Args: cobra.NoArgs,
	RunE: runQuota,
}

func init() {
	rootCmd.AddCommand(quotaCmd)
	quotaCmd.Flags().BoolVar(&quotaReset, "reset", false, "Clear today's counter")
	_ = quotaCmd.Flags().MarkHidden("reset")
}

func runQuota(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.quota.Load(ctx)
	if quotaReset {
		rec, err = a.quota.Reset(ctx)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Date:      %s\n", rec.Date)
	fmt.Fprintf(out, "Used:      %d/%d\n", rec.Count, a.quota.Limit())
	fmt.Fprintf(out, "Remaining: %d\n", a.quota.Remaining(rec))
	if !a.quota.CanSend(rec) {
		fmt.Fprintln(out)
		fmt.Fprintln(out, a.prompts.Upgrade(a.quota.Limit()))
	}
	if a.authenticated(ctx) {
		fmt.Fprintln(out, "\nLogged in: chats are unlimited.")
	}
	return nil
}
