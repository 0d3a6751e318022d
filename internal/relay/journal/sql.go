package journal

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS exchanges (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  TEXT    NOT NULL,
    command     TEXT    NOT NULL,
    reply       TEXT,
    error       TEXT,
    result      TEXT    NOT NULL,
    issued_at   INTEGER NOT NULL,
    duration_us INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_issued_at ON exchanges (issued_at);`

	insertExchangeSQL = `
INSERT INTO exchanges (session_id,
                       command,
                       reply,
                       error,
                       result,
                       issued_at,
                       duration_us)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectRecentSQL = `
SELECT
    id,
    session_id,
    command,
    reply,
    error,
    result,
    issued_at,
    duration_us
FROM exchanges
ORDER BY id DESC
LIMIT ?`
)
