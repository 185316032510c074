package db

// Schema is applied on every Open; all statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id INTEGER PRIMARY KEY,
	created_at REAL NOT NULL,
	ended_at REAL,
	name TEXT NOT NULL,
	role TEXT NOT NULL,
	port INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS session_events (
	id INTEGER PRIMARY KEY,
	session_id INTEGER NOT NULL REFERENCES sessions (id) ON DELETE CASCADE,
	created_at REAL NOT NULL,
	kind TEXT NOT NULL,
	peer_index INTEGER NOT NULL,
	channel INTEGER NOT NULL,
	size INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_events_session_id
	ON session_events (session_id);
`
