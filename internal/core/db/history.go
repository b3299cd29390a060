package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neilberkman/pitchside/internal/core/models"
)

// SaveHistory replaces the cached history list. Sessions that dropped out
// of the list are removed together with any cached transcript.
func (db *DB) SaveHistory(ctx context.Context, sessions []models.Session) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE sessions SET list_position = NULL`); err != nil {
			return fmt.Errorf("reset positions: %w", err)
		}

		for i, s := range sessions {
			if err := upsertSession(ctx, tx, s, sql.NullInt64{Int64: int64(i), Valid: true}); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE list_position IS NULL`); err != nil {
			return fmt.Errorf("prune sessions: %w", err)
		}
		return nil
	})
}

func upsertSession(ctx context.Context, tx *sql.Tx, s models.Session, position sql.NullInt64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sessions
		(session_id, title, preview, topic, message_count, last_activity, created_at, list_position, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(session_id) DO UPDATE SET
			title = COALESCE(NULLIF(excluded.title, ''), sessions.title),
			preview = COALESCE(NULLIF(excluded.preview, ''), sessions.preview),
			topic = excluded.topic,
			message_count = excluded.message_count,
			last_activity = excluded.last_activity,
			created_at = COALESCE(excluded.created_at, sessions.created_at),
			list_position = COALESCE(excluded.list_position, sessions.list_position),
			cached_at = CURRENT_TIMESTAMP
	`, s.SessionID, s.Title, s.Preview, string(models.ParseTopic(string(s.Topic))), s.MessageCount,
		formatTime(s.LastActivity), formatTime(s.CreatedAt), position)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", s.SessionID, err)
	}
	return nil
}

// LoadHistory returns the cached list in the order it was fetched
func (db *DB) LoadHistory(ctx context.Context) ([]models.Session, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT session_id, title, preview, topic, message_count, last_activity, created_at
		FROM sessions
		WHERE list_position IS NOT NULL
		ORDER BY list_position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cached history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (models.Session, error) {
	var (
		s                       models.Session
		title, preview, topic   sql.NullString
		lastActivity, createdAt sql.NullString
	)
	if err := row.Scan(&s.SessionID, &title, &preview, &topic, &s.MessageCount, &lastActivity, &createdAt); err != nil {
		return s, fmt.Errorf("failed to scan session: %w", err)
	}
	s.Title = title.String
	s.Preview = preview.String
	s.Topic = models.ParseTopic(topic.String)
	s.LastActivity = parseTime(lastActivity).Local()
	s.CreatedAt = parseTime(createdAt).Local()
	return s, nil
}

// RemoveSession drops one session and its cached transcript
func (db *DB) RemoveSession(ctx context.Context, sessionID string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to remove cached session: %w", err)
	}
	return nil
}

// SaveTranscript caches the full message list of one session
func (db *DB) SaveTranscript(ctx context.Context, s models.Session) error {
	if err := s.Validate(); err != nil {
		return err
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertSession(ctx, tx, s, sql.NullInt64{}); err != nil {
			return err
		}

		var rowID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM sessions WHERE session_id = ?`, s.SessionID).Scan(&rowID); err != nil {
			return fmt.Errorf("lookup session row: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, rowID); err != nil {
			return fmt.Errorf("clear transcript: %w", err)
		}

		for i, m := range s.Messages {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO messages
				(session_id, message_id, sender, text_content, timestamp, sequence, is_error, off_topic)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, rowID, m.ID, string(m.Sender), m.Text, formatTime(m.Timestamp), i, m.IsError, m.OffTopic)
			if err != nil {
				return fmt.Errorf("insert message %d: %w", i, err)
			}
		}
		return nil
	})
}

// ErrNoTranscript is returned when a session was never opened while online
var ErrNoTranscript = errors.New("no cached transcript")

// LoadTranscript returns a cached session with its messages
func (db *DB) LoadTranscript(ctx context.Context, sessionID string) (*models.Session, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT session_id, title, preview, topic, message_count, last_activity, created_at
		FROM sessions WHERE session_id = ?
	`, sessionID)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoTranscript
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT m.message_id, m.sender, m.text_content, m.timestamp, m.is_error, m.off_topic
		FROM messages m
		JOIN sessions s ON s.id = m.session_id
		WHERE s.session_id = ?
		ORDER BY m.sequence ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			m         models.Message
			id, text  sql.NullString
			sender    string
			timestamp sql.NullString
		)
		if err := rows.Scan(&id, &sender, &text, &timestamp, &m.IsError, &m.OffTopic); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.ID = id.String
		m.Sender = models.Sender(sender)
		m.Text = text.String
		m.Timestamp = parseTime(timestamp).Local()
		m.SessionID = sessionID
		s.Messages = append(s.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(s.Messages) == 0 {
		return nil, ErrNoTranscript
	}
	return &s, nil
}
