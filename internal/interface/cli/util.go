package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

func readAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// confirm asks a yes/no question on in/out
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N] ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// truncateSummary truncates long summaries for display
func truncateSummary(summary string, maxLen int) string {
	// Remove newlines and excessive whitespace
	summary = strings.Join(strings.Fields(summary), " ")

	r := []rune(summary)
	if len(r) <= maxLen {
		return summary
	}

	// Find a good break point (end of word)
	truncated := string(r[:maxLen])
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > 0 && lastSpace > len(truncated)-20 {
		truncated = truncated[:lastSpace]
	}

	return truncated + "..."
}

// formatTimestamp formats a timestamp in a human-friendly way
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	if time.Since(t) < 7*24*time.Hour {
		return humanize.Time(t)
	}
	if t.Year() == time.Now().Year() {
		return t.Format("Jan 2")
	}
	return t.Format("Jan 2, 2006")
}

// formatBytes formats bytes into human-readable format
func formatBytes(bytes int64) string {
	return humanize.IBytes(uint64(bytes))
}
