package db

import (
	"fmt"
)

// migrate applies database migrations for existing databases
func (db *DB) migrate() error {
	// Migration 1: cached messages gained the off-topic marker
	if err := db.migration001AddOffTopic(); err != nil {
		return fmt.Errorf("migration 001: %w", err)
	}

	// Migration 2: sessions gained cached_at for staleness reporting
	if err := db.migration002AddCachedAt(); err != nil {
		return fmt.Errorf("migration 002: %w", err)
	}

	return nil
}

func (db *DB) hasColumn(table, column string) (bool, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM pragma_table_info(?)
		WHERE name = ?
	`, table, column).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// migration001AddOffTopic adds messages.off_topic
func (db *DB) migration001AddOffTopic() error {
	ok, err := db.hasColumn("messages", "off_topic")
	if err != nil || ok {
		return err
	}

	_, err = db.conn.Exec(`ALTER TABLE messages ADD COLUMN off_topic BOOLEAN DEFAULT 0;`)
	if err != nil {
		return fmt.Errorf("add off_topic column: %w", err)
	}
	return nil
}

// migration002AddCachedAt adds sessions.cached_at and backfills it
func (db *DB) migration002AddCachedAt() error {
	ok, err := db.hasColumn("sessions", "cached_at")
	if err != nil || ok {
		return err
	}

	// SQLite refuses non-constant defaults in ALTER TABLE
	if _, err := db.conn.Exec(`ALTER TABLE sessions ADD COLUMN cached_at DATETIME;`); err != nil {
		return fmt.Errorf("add cached_at column: %w", err)
	}
	if _, err := db.conn.Exec(`UPDATE sessions SET cached_at = CURRENT_TIMESTAMP WHERE cached_at IS NULL;`); err != nil {
		return fmt.Errorf("backfill cached_at: %w", err)
	}
	return nil
}
