package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations. The same
// database file serves both roles: history_cache is the widget's local
// bounded cache, conversation_messages is the server's canonical log.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create history cache",
		SQL: `
			CREATE TABLE history_cache (
				cache_key      TEXT NOT NULL,
				message_id     TEXT NOT NULL,
				text           TEXT NOT NULL,
				sender         TEXT NOT NULL,
				created_at     TEXT NOT NULL,
				origin         TEXT NOT NULL,
				position       INTEGER NOT NULL,
				PRIMARY KEY (cache_key, message_id)
			);

			CREATE INDEX idx_history_key_pos ON history_cache (cache_key, position);
		`,
	},
	{
		Version: 2,
		Name:    "create conversation messages",
		SQL: `
			CREATE TABLE conversation_messages (
				id              TEXT PRIMARY KEY,
				conversation    TEXT NOT NULL,
				sender          TEXT NOT NULL,
				text            TEXT NOT NULL,
				created_at      TEXT NOT NULL DEFAULT (datetime('now')),
				correlation_id  TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_conv_messages ON conversation_messages (conversation, created_at, id);
		`,
	},
}
