package statemanager

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    hostname TEXT NOT NULL,
    profile TEXT,
    started_at TEXT NOT NULL,
    duration_ns INTEGER NOT NULL,
    outcome TEXT NOT NULL,
    missing TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_hostname ON runs(hostname);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`
