package cli

import (
	"fmt"
	"strings"

	"github.com/neilberkman/pitchside/internal/core/history"
	"github.com/spf13/cobra"
)

var (
	listLimit  int
	listFilter string
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h"},
	Short:   "Browse saved conversations",
	Long: `List, show, search and delete the conversations saved to your account.

Requires login. When the backend is unreachable the last fetched list is shown.`,
}

var listCmd = &cobra.Command{
	Use:   "list [filter...]",
	Short: "List saved conversations",
	Long: `List saved conversations, most recent first.

Filters:
  topic:chelsea|frontend|mixed|general
  after:<date>  before:<date>  date:<date>   (2025-01-31, yesterday, last-week)
  any other words match the title and preview

Examples:
  pitchside history list
  pitchside history list --limit 10
  pitchside history list topic:chelsea after:last-week`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of conversations to display")
	listCmd.Flags().StringVar(&listFilter, "filter", "", "Filter query (same syntax as positional filters)")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	snap, err := a.history.Refresh(ctx)
	if err != nil {
		return err
	}

	query := strings.TrimSpace(listFilter + " " + strings.Join(args, " "))
	filter := history.ParseFilter(query)
	sessions := filter.Apply(snap.Sessions)

	out := cmd.OutOrStdout()
	if snap.Degraded {
		fmt.Fprintf(cmd.ErrOrStderr(), "Backend unreachable (%v); showing cached history.\n\n", snap.Err)
	}

	if len(sessions) == 0 {
		if !filter.IsEmpty() {
			fmt.Fprintf(out, "No conversations match: %s\n", query)
		} else {
			fmt.Fprintln(out, "No conversations yet. Run 'pitchside chat' to start one.")
		}
		return nil
	}

	total := len(sessions)
	if total > listLimit {
		sessions = sessions[:listLimit]
	}

	fmt.Fprintf(out, "Showing %d of %d conversation(s)\n\n", len(sessions), total)
	for i, s := range sessions {
		fmt.Fprintf(out, "[%d] %s\n", i+1, s.SessionID)
		fmt.Fprintf(out, "    Title:    %s\n", truncateSummary(s.DisplayTitle(), 70))
		if s.Preview != "" {
			fmt.Fprintf(out, "    Preview:  %s\n", truncateSummary(s.Preview, 70))
		}
		fmt.Fprintf(out, "    Topic:    %s\n", s.Topic.Label())
		fmt.Fprintf(out, "    Messages: %d\n", s.MessageCount)
		fmt.Fprintf(out, "    Active:   %s\n", formatTimestamp(s.LastActivity))
		fmt.Fprintln(out)
	}

	return nil
}
