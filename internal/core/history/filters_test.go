package history

import (
	"testing"
	"time"

	"github.com/neilberkman/pitchside/internal/core/models"
	"github.com/stretchr/testify/assert"
)

func TestParseFilter(t *testing.T) {
	now := time.Date(2025, 6, 15, 14, 30, 0, 0, time.Local)

	tests := []struct {
		name  string
		query string
		check func(t *testing.T, f Filter)
	}{
		{
			name:  "free text only",
			query: "react hooks",
			check: func(t *testing.T, f Filter) {
				assert.Equal(t, "react hooks", f.Text)
				assert.False(t, f.HasTopic)
				assert.False(t, f.HasAfter)
			},
		},
		{
			name:  "topic",
			query: "topic:Chelsea transfers",
			check: func(t *testing.T, f Filter) {
				assert.True(t, f.HasTopic)
				assert.Equal(t, models.TopicChelsea, f.Topic)
				assert.Equal(t, "transfers", f.Text)
			},
		},
		{
			name:  "explicit date range",
			query: "after:2025-01-01 before:2025-02-01",
			check: func(t *testing.T, f Filter) {
				assert.True(t, f.HasAfter)
				assert.True(t, f.HasBefore)
				assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.Local), f.After)
				assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.Local), f.Before)
				assert.Empty(t, f.Text)
			},
		},
		{
			name:  "date covers one day",
			query: "date:2025-03-10",
			check: func(t *testing.T, f Filter) {
				assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.Local), f.After)
				assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.Local), f.Before)
			},
		},
		{
			name:  "natural language",
			query: "after:yesterday",
			check: func(t *testing.T, f Filter) {
				assert.True(t, f.HasAfter)
				assert.True(t, f.After.Before(now))
				assert.True(t, f.After.After(now.AddDate(0, 0, -2)))
			},
		},
		{
			name:  "unparseable date is dropped",
			query: "after:whenever grid",
			check: func(t *testing.T, f Filter) {
				assert.False(t, f.HasAfter)
				assert.Equal(t, "grid", f.Text)
			},
		},
		{
			name:  "unknown prefix stays text",
			query: "http://example.com",
			check: func(t *testing.T, f Filter) {
				assert.Equal(t, "http://example.com", f.Text)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, parseFilterAt(tt.query, now))
		})
	}
}

func TestFilterApply(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 3, d, 12, 0, 0, 0, time.Local) }
	sessions := []models.Session{
		{SessionID: "1", Title: "Palmer hat-trick", Topic: models.TopicChelsea, LastActivity: day(9)},
		{SessionID: "2", Title: "React state", Preview: "useReducer vs useState", Topic: models.TopicFrontend, LastActivity: day(10)},
		{SessionID: "3", Title: "Chelsea website in React", Topic: models.TopicMixed, CreatedAt: day(11)},
	}

	ids := func(ss []models.Session) []string {
		var out []string
		for _, s := range ss {
			out = append(out, s.SessionID)
		}
		return out
	}

	now := day(20)
	assert.Equal(t, []string{"1", "2", "3"}, ids(parseFilterAt("", now).Apply(sessions)))
	assert.Equal(t, []string{"2", "3"}, ids(parseFilterAt("react", now).Apply(sessions)))
	assert.Equal(t, []string{"2"}, ids(parseFilterAt("usereducer", now).Apply(sessions)))
	assert.Equal(t, []string{"1"}, ids(parseFilterAt("topic:chelsea", now).Apply(sessions)))
	assert.Equal(t, []string{"2"}, ids(parseFilterAt("date:2025-03-10", now).Apply(sessions)))
	assert.Equal(t, []string{"3"}, ids(parseFilterAt("after:2025-03-11", now).Apply(sessions)))
	assert.Equal(t, []string{"1"}, ids(parseFilterAt("before:2025-03-10", now).Apply(sessions)))
	assert.Empty(t, parseFilterAt("topic:general", now).Apply(sessions))
}
