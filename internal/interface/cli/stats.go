package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/neilberkman/pitchside/internal/core/history"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage analytics",
	Long: `Display usage analytics for your account and the local cache.

Shows conversation and message counts, the favorite topic, the topic
distribution, recent activity, and what is cached on this machine.`,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()

	if a.authenticated(ctx) {
		snap, err := a.history.Refresh(ctx)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, "Analytics")
		fmt.Fprintln(out, "=========")
		if snap.Degraded {
			fmt.Fprintln(out, "(backend unreachable, computed from cached history)")
		} else if snap.StatsLocal {
			fmt.Fprintln(out, "(computed locally)")
		}
		fmt.Fprintln(out)

		st := snap.Stats
		fmt.Fprintf(out, "Total Chats:       %d\n", st.TotalChats)
		fmt.Fprintf(out, "Total Messages:    %d\n", st.TotalMessages)
		fmt.Fprintf(out, "Avg per Chat:      %.0f\n", st.AvgMessagesPerChat)
		fmt.Fprintf(out, "Favorite Topic:    %s\n", st.MostActiveTopic)
		fmt.Fprintln(out)

		if dist := history.TopicDistribution(snap.Sessions); len(dist) > 0 {
			fmt.Fprintln(out, "Topic Distribution:")
			for _, tc := range dist {
				bar := strings.Repeat("█", max(1, int(tc.Share*30)))
				fmt.Fprintf(out, "  %-11s %s %d\n", tc.Topic.Label(), bar, tc.Count)
			}
			fmt.Fprintln(out)
		}

		if len(st.RecentActivity) > 0 {
			fmt.Fprintln(out, "Recent Activity:")
			for _, s := range st.RecentActivity {
				fmt.Fprintf(out, "  %-40s %s\n", truncateSummary(s.DisplayTitle(), 40), formatTimestamp(s.LastActivity))
			}
			fmt.Fprintln(out)
		}
	} else {
		rec, err := a.quota.Load(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Free tier")
		fmt.Fprintln(out, "=========")
		fmt.Fprintln(out, bannerFor(a.prompts, a.quota, rec))
		fmt.Fprintln(out, "Log in to see conversation analytics.")
		fmt.Fprintln(out)
	}

	if a.cache == nil {
		fmt.Fprintf(out, "Local Store:       %s\n", a.cfg.Storage.Backend)
		return nil
	}

	cs, err := a.cache.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	fmt.Fprintln(out, "Local Cache")
	fmt.Fprintln(out, "===========")
	fmt.Fprintf(out, "Conversations:     %d\n", cs.CachedSessions)
	fmt.Fprintf(out, "Transcripts:       %d (%d messages)\n", cs.CachedTranscripts, cs.CachedMessages)
	if cs.CachedSessions > 0 {
		fmt.Fprintf(out, "Oldest Activity:   %s\n", cs.OldestActivity.Format("Jan 2, 2006 3:04 PM"))
		fmt.Fprintf(out, "Newest Activity:   %s\n", cs.NewestActivity.Format("Jan 2, 2006 3:04 PM"))
	}

	// Database file size
	fileInfo, err := os.Stat(a.cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to stat database file: %w", err)
	}
	fmt.Fprintf(out, "Database Location: %s\n", a.cfg.Storage.Path)
	fmt.Fprintf(out, "Database Size:     %s\n", formatBytes(fileInfo.Size()))
	return nil
}
