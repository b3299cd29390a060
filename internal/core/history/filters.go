package history

import (
	"strings"
	"time"

	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Filter is a parsed history query
type Filter struct {
	Text      string
	Topic     models.Topic
	HasTopic  bool
	After     time.Time
	Before    time.Time
	HasAfter  bool
	HasBefore bool
}

// ParseFilter extracts filters from a query string.
// Supports:
//   - topic:chelsea, topic:frontend, topic:mixed, topic:general
//   - date:yesterday, date:2025-01-31 - that whole day
//   - after:last-week, before:2025-01-31 - explicit ranges
//
// Everything else is free text matched against title and preview.
func ParseFilter(query string) Filter {
	return parseFilterAt(query, time.Now())
}

func parseFilterAt(query string, now time.Time) Filter {
	var f Filter

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	var text []string
	for _, token := range strings.Fields(query) {
		key, value, ok := strings.Cut(token, ":")
		if !ok || value == "" {
			text = append(text, token)
			continue
		}

		switch strings.ToLower(key) {
		case "topic":
			f.Topic = models.ParseTopic(value)
			f.HasTopic = true
		case "date":
			if t, ok := parseDate(w, value, now); ok {
				day := startOfDay(t)
				f.After, f.HasAfter = day, true
				f.Before, f.HasBefore = day.AddDate(0, 0, 1), true
			}
		case "after":
			if t, ok := parseDate(w, value, now); ok {
				f.After, f.HasAfter = t, true
			}
		case "before":
			if t, ok := parseDate(w, value, now); ok {
				f.Before, f.HasBefore = t, true
			}
		default:
			text = append(text, token)
		}
	}

	f.Text = strings.Join(text, " ")
	return f
}

// parseDate tries fixed layouts first, then natural language
func parseDate(w *when.Parser, s string, now time.Time) (time.Time, bool) {
	layouts := []string{
		"2006-01-02",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
		"01/02/2006",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, now.Location()); err == nil {
			return t, true
		}
	}

	result, err := w.Parse(strings.ReplaceAll(s, "-", " "), now)
	if err == nil && result != nil {
		return result.Time, true
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsEmpty reports whether the filter matches everything
func (f Filter) IsEmpty() bool {
	return f.Text == "" && !f.HasTopic && !f.HasAfter && !f.HasBefore
}

// Match reports whether s passes every filter
func (f Filter) Match(s models.Session) bool {
	if f.HasTopic && models.ParseTopic(string(s.Topic)) != f.Topic {
		return false
	}
	at := s.LastActivity
	if at.IsZero() {
		at = s.CreatedAt
	}
	if f.HasAfter && at.Before(f.After) {
		return false
	}
	if f.HasBefore && !at.Before(f.Before) {
		return false
	}
	if f.Text != "" {
		haystack := strings.ToLower(s.Title + " " + s.Preview)
		for _, word := range strings.Fields(strings.ToLower(f.Text)) {
			if !strings.Contains(haystack, word) {
				return false
			}
		}
	}
	return true
}

// Apply returns the sessions that match f, preserving order
func (f Filter) Apply(sessions []models.Session) []models.Session {
	if f.IsEmpty() {
		return sessions
	}
	var out []models.Session
	for _, s := range sessions {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	return out
}
