package sqlite

type migration struct {
	version int
	sql     string
}

// migrations must be ordered with sequential versions starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	token         TEXT NOT NULL DEFAULT '',
	user_json     TEXT NOT NULL DEFAULT '',
	authenticated INTEGER NOT NULL DEFAULT 0,
	flashes_json  TEXT NOT NULL DEFAULT '[]',
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	expires_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE sessions ADD COLUMN preferences_json TEXT NOT NULL DEFAULT '{}';

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
