package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	searchLimit int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search cached transcripts using full-text search",
	Long: `Search the transcripts cached on this machine.

Uses FTS5 full-text search with porter stemming. Only conversations opened
or synced before are searchable; run 'pitchside sync' to cache them all.

Examples:
  pitchside history search "penalty shootout"
  pitchside history search useEffect --limit 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	historyCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum number of matches to show")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	query := strings.Join(args, " ")

	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cache == nil {
		return errors.New("search needs the sqlite store (storage.backend = \"sqlite\")")
	}

	results, err := a.cache.Search(ctx, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintf(out, "No results found for: %s\n", query)
		return nil
	}

	fmt.Fprintf(out, "Found %d match(es) for: %s\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(out, "=== Match %d ===\n", i+1)
		fmt.Fprintf(out, "Session: %s\n", r.SessionID)
		if r.Title != "" {
			fmt.Fprintf(out, "Title:   %s\n", r.Title)
		}
		fmt.Fprintf(out, "Topic:   %s\n", r.Topic.Label())
		fmt.Fprintf(out, "From:    %s, %s\n", r.Sender, formatTimestamp(r.Timestamp))
		fmt.Fprintf(out, "  %s\n\n", truncateSummary(r.Snippet, 200))
	}
	return nil
}
