package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hazyhaar/domfinder/dbopen"
)

// Schema contains the DDL for the extraction history tables.
const Schema = `
CREATE TABLE IF NOT EXISTS domain_events (
    event_id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    session_id TEXT,
    transport TEXT,
    domain TEXT,
    outcome TEXT NOT NULL,
    detail TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_domain_events_time ON domain_events(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_domain_events_run ON domain_events(run_id);
CREATE INDEX IF NOT EXISTS idx_domain_events_domain ON domain_events(domain, created_at DESC);
`

// Init applies the history schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Cleanup deletes events older than days. Zero or negative keeps everything.
func Cleanup(ctx context.Context, db *sql.DB, days int, now time.Time) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := now.Unix() - int64(days*86400)
	res, err := dbopen.Exec(ctx, db, `DELETE FROM domain_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup domain_events: %w", err)
	}
	return res.RowsAffected()
}
