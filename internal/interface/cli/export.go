package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Export a conversation to markdown",
	Long: `Export a saved conversation to a markdown file.

By default exports to current directory as chat-<id>.md.
Use --output to specify a custom path, or "-" for stdout.

Examples:
  pitchside export 6650f2a1c3
  pitchside export 6650f2a1c3 --output ~/chelsea-tactics.md
  pitchside export 6650f2a1c3 -o -`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path (default: chat-<id>.md in current directory)")
}

func runExport(cmd *cobra.Command, args []string) error {
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

	s, err := a.history.Transcript(ctx, sessionID)
	if err != nil {
		return err
	}
	md := renderMarkdown(*s)

	if exportOutput == "-" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), md)
		return err
	}

	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	// Determine output path
	outputPath := exportOutput
	if outputPath == "" {
		shortID := sessionID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}
		outputPath = filepath.Join(cwd, fmt.Sprintf("chat-%s.md", shortID))
	} else if !filepath.IsAbs(outputPath) {
		outputPath = filepath.Join(cwd, outputPath)
	}

	if err := os.WriteFile(outputPath, []byte(md), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported conversation to: %s\n", outputPath)
	return nil
}

// renderMarkdown formats a transcript as markdown
func renderMarkdown(s models.Session) string {
	var b strings.Builder

	// Header
	b.WriteString("# ")
	b.WriteString(s.DisplayTitle())
	b.WriteString("\n\n")

	// Metadata
	fmt.Fprintf(&b, "**Session ID:** `%s`  \n", s.SessionID)
	fmt.Fprintf(&b, "**Topic:** %s  \n", s.Topic.Label())
	if !s.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Created:** %s  \n", formatTimestampForExport(s.CreatedAt))
	}
	if !s.LastActivity.IsZero() {
		fmt.Fprintf(&b, "**Updated:** %s  \n", formatTimestampForExport(s.LastActivity))
	}
	fmt.Fprintf(&b, "**Messages:** %d\n\n", len(s.Messages))
	b.WriteString("---\n\n")

	for _, m := range s.Messages {
		label := "USER"
		if !m.IsUser() {
			label = "ASSISTANT"
		}
		if m.IsError {
			label += " (error)"
		}

		fmt.Fprintf(&b, "**%s** _%s_\n\n", label, formatTimestampForExport(m.Timestamp))
		if m.Text != "" {
			b.WriteString(m.Text)
			b.WriteString("\n\n")
		}
		b.WriteString("---\n\n")
	}
	return b.String()
}

func formatTimestampForExport(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Local().Format("Jan 02, 2006 15:04:05")
}
