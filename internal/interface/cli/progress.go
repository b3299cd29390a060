package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// progressReporter draws a one-line progress bar while transcripts download
type progressReporter struct {
	writer    io.Writer
	total     int
	current   int
	failed    int
	startTime time.Time
}

func newProgressReporter(w io.Writer, total int) *progressReporter {
	return &progressReporter{
		writer:    w,
		total:     total,
		startTime: time.Now(),
	}
}

// Update advances the bar by one conversation
func (p *progressReporter) Update(title string, err error) {
	p.current++
	if err != nil {
		p.failed++
	}
	if p.total == 0 {
		return
	}

	pct := float64(p.current) / float64(p.total) * 100

	barWidth := 30
	filled := barWidth * p.current / p.total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	elapsed := time.Since(p.startTime)
	var eta time.Duration
	if elapsed > 0 {
		rate := float64(p.current) / elapsed.Seconds()
		eta = time.Duration(float64(p.total-p.current)/rate) * time.Second
	}

	_, _ = fmt.Fprintf(p.writer, "\r\033[K[%s] %3.0f%% (%d/%d) ETA: %s | %s",
		bar, pct, p.current, p.total, eta.Round(time.Second), truncateSummary(title, 40))
}

// Finish ends the bar with a summary line
func (p *progressReporter) Finish() {
	elapsed := time.Since(p.startTime)
	_, _ = fmt.Fprintf(p.writer, "\r\033[KCached %d transcript(s) in %s", p.current-p.failed, elapsed.Round(time.Millisecond))
	if p.failed > 0 {
		_, _ = fmt.Fprintf(p.writer, ", %d failed", p.failed)
	}
	_, _ = fmt.Fprintln(p.writer)
}
