package db

import (
	"database/sql"
	"time"
)

// Stats describes what the local cache currently holds
type Stats struct {
	CachedSessions       int
	CachedTranscripts    int
	CachedMessages       int
	OldestActivity       time.Time
	NewestActivity       time.Time
	MostActiveTopic      string
	MostActiveTopicCount int
}

// GetStats returns cache statistics
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}

	err := db.conn.QueryRow("SELECT COUNT(*) FROM sessions WHERE list_position IS NOT NULL").Scan(&stats.CachedSessions)
	if err != nil {
		return nil, err
	}

	err = db.conn.QueryRow("SELECT COUNT(DISTINCT session_id), COUNT(*) FROM messages").
		Scan(&stats.CachedTranscripts, &stats.CachedMessages)
	if err != nil {
		return nil, err
	}

	if stats.CachedSessions == 0 {
		return stats, nil
	}

	var oldest, newest sql.NullString
	err = db.conn.QueryRow("SELECT MIN(last_activity), MAX(last_activity) FROM sessions").Scan(&oldest, &newest)
	if err != nil {
		return nil, err
	}
	stats.OldestActivity = parseTime(oldest).Local()
	stats.NewestActivity = parseTime(newest).Local()

	var topic sql.NullString
	err = db.conn.QueryRow(`
		SELECT topic, COUNT(*) as count
		FROM sessions
		WHERE list_position IS NOT NULL
		GROUP BY topic
		ORDER BY count DESC
		LIMIT 1
	`).Scan(&topic, &stats.MostActiveTopicCount)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	stats.MostActiveTopic = topic.String

	return stats, nil
}
