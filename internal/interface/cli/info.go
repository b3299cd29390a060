package cli

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/spf13/cobra"
)

var infoWidth int

var infoCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print one conversation",
	Long: `Print the full transcript of a saved conversation.

Falls back to the local cache when the backend is unreachable and the
conversation was opened before.

Examples:
  pitchside history show 6650f2a1
  pitchside history show 6650f2a1 --width 100`,
	Args: cobra.ExactArgs(1),
	RunE: runInfo,
}

func init() {
	historyCmd.AddCommand(infoCmd)
	infoCmd.Flags().IntVar(&infoWidth, "width", 80, "Wrap text at this many columns")
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireAuth(ctx); err != nil {
		return err
	}

	s, err := a.history.Transcript(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", s.DisplayTitle())
	fmt.Fprintf(out, "%s\n", strings.Repeat("=", min(len([]rune(s.DisplayTitle())), infoWidth)))
	fmt.Fprintf(out, "ID:       %s\n", s.SessionID)
	fmt.Fprintf(out, "Topic:    %s\n", s.Topic.Label())
	fmt.Fprintf(out, "Messages: %d\n", len(s.Messages))
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(out, "Created:  %s\n", s.CreatedAt.Local().Format("Jan 2, 2006 3:04 PM"))
	}
	fmt.Fprintln(out)

	for _, m := range s.Messages {
		fmt.Fprintf(out, "%s  %s\n", speaker(m), m.Timestamp.Local().Format("3:04 PM"))
		fmt.Fprintln(out, wordwrap.String(m.Text, infoWidth))
		fmt.Fprintln(out)
	}
	return nil
}

func speaker(m models.Message) string {
	if m.IsUser() {
		return "You"
	}
	return "Assistant"
}
