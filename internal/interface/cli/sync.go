package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncFull bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Cache history and transcripts locally",
	Long: `Fetch the conversation list and store it in the local cache so the
dashboard and 'history' commands work offline.

With --full every transcript is downloaded too, which makes all of them
available to 'pitchside history search'.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "Also download every transcript")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Syncing from: %s\n", a.cfg.API.BaseURL)
	if a.cache != nil {
		fmt.Fprintf(out, "Database: %s\n\n", a.cfg.Storage.Path)
	}

	snap, err := a.history.Refresh(ctx)
	if err != nil {
		return err
	}
	if snap.Degraded {
		return fmt.Errorf("sync failed: %w", snap.Err)
	}
	fmt.Fprintf(out, "Cached %d conversation(s)\n", len(snap.Sessions))

	if !syncFull {
		return nil
	}
	if a.cache == nil {
		fmt.Fprintln(out, "Transcripts are only cached with the sqlite store")
		return nil
	}

	progress := newProgressReporter(out, len(snap.Sessions))
	for _, s := range snap.Sessions {
		_, err := a.history.Transcript(ctx, s.SessionID)
		if err != nil {
			a.logger.Warn().Err(err).Str("session_id", s.SessionID).Msg("transcript sync failed")
		}
		progress.Update(s.DisplayTitle(), err)
	}
	progress.Finish()
	return nil
}
