package store

// schema contains the SQL statements to create the xreflens database schema.
const schema = `
-- Index entries: one row per top-level key, JSON encoded value
CREATE TABLE IF NOT EXISTS entries (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Metadata table for index info
CREATE TABLE IF NOT EXISTS metadata (
    key   TEXT PRIMARY KEY,
    value TEXT
);
`
