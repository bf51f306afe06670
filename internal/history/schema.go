package history

// Timestamps are stored as UTC nanoseconds so ordering is numeric. The
// rowid breaks ties between records appended within the same nanosecond.
const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id              TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	bucket          TEXT NOT NULL,
	user            TEXT NOT NULL,
	text            TEXT NOT NULL,
	ts              INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_recent
	ON messages (conversation_id, bucket, ts);
`
