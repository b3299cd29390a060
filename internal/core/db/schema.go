package db

func (db *DB) initSchema() error {
	schema := `
	-- Small key/value records: token, user profile, usage counter
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Last history list fetched from the backend
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT UNIQUE NOT NULL,
		title TEXT,
		preview TEXT,
		topic TEXT NOT NULL DEFAULT 'general',
		message_count INTEGER DEFAULT 0,
		last_activity DATETIME,
		created_at DATETIME,
		list_position INTEGER,
		cached_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_list_position ON sessions(list_position);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity);

	-- Transcripts of sessions that were opened at least once
	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		message_id TEXT,
		sender TEXT NOT NULL,
		text_content TEXT,
		timestamp DATETIME,
		sequence INTEGER,
		is_error BOOLEAN DEFAULT 0,
		off_topic BOOLEAN DEFAULT 0,
		FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_session_id ON messages(session_id);
	CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp);

	-- Offline search over cached transcripts
	CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
		text_content,
		content=messages,
		content_rowid=id,
		tokenize='porter unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
		INSERT INTO messages_fts(rowid, text_content) VALUES (new.id, new.text_content);
	END;

	CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, text_content) VALUES ('delete', old.id, old.text_content);
	END;

	CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
		INSERT INTO messages_fts(messages_fts, rowid, text_content) VALUES ('delete', old.id, old.text_content);
		INSERT INTO messages_fts(rowid, text_content) VALUES (new.id, new.text_content);
	END;
	`

	_, err := db.conn.Exec(schema)
	return err
}
