package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/neilberkman/pitchside/internal/core/models"
)

// SearchResult is one matching message from a cached transcript
type SearchResult struct {
	SessionID string
	Title     string
	Topic     models.Topic
	Sender    models.Sender
	Snippet   string
	Timestamp time.Time
}

// Search runs a full-text query over cached transcripts
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.session_id, s.title, s.topic, m.sender,
		       snippet(messages_fts, 0, '[', ']', '...', 12),
		       m.timestamp
		FROM messages_fts
		JOIN messages m ON m.id = messages_fts.rowid
		JOIN sessions s ON s.id = m.session_id
		WHERE messages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuery(query), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search cache: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var (
			r         SearchResult
			title     sql.NullString
			topic     string
			sender    string
			timestamp sql.NullString
		)
		if err := rows.Scan(&r.SessionID, &title, &topic, &sender, &r.Snippet, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.Title = title.String
		r.Topic = models.ParseTopic(topic)
		r.Sender = models.Sender(sender)
		r.Timestamp = parseTime(timestamp).Local()
		results = append(results, r)
	}
	return results, rows.Err()
}

// ftsQuery quotes each term so user input cannot inject FTS5 syntax
func ftsQuery(q string) string {
	terms := strings.Fields(q)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
