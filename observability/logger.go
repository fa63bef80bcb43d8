// CLAUDE:SUMMARY Best-effort SQLite history of extraction runs and title resolutions.
package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/domfinder/dbopen"
	"github.com/hazyhaar/domfinder/idgen"
)

// Event types written by domfinder.
const (
	EventTitleResolved    = "title_resolved"
	EventExtractionRun    = "extraction_run"
	EventExtractionFailed = "extraction_failed"
)

// Event is one history row.
type Event struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	Transport  string `json:"transport,omitempty"`
	Domain     string `json:"domain,omitempty"`
	Outcome    string `json:"outcome"`
	Detail     string `json:"detail,omitempty"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms"`
	CreatedAt  int64  `json:"created_at"`
}

// EventLogger writes history events. A nil *EventLogger is valid and
// records nothing, which is how history is disabled.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	now    func() time.Time
	logger *slog.Logger
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithClock sets the time source used for created_at.
func WithClock(now func() time.Time) EventLoggerOption {
	return func(l *EventLogger) { l.now = now }
}

// WithLogger sets the slog logger used to report write failures.
func WithLogger(logger *slog.Logger) EventLoggerOption {
	return func(l *EventLogger) { l.logger = logger }
}

// NewEventLogger creates a logger backed by the given history database.
// The schema must already be applied (see Init).
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a single event. Errors are logged, never returned, so a
// failing history store never blocks a run.
func (l *EventLogger) LogEvent(ctx context.Context, ev Event) {
	if l == nil {
		return
	}
	l.stamp(&ev)
	if _, err := dbopen.Exec(ctx, l.db, insertEvent, eventArgs(ev)...); err != nil {
		l.logger.Error("history event log failed", "error", err, "event_type", ev.Type)
	}
}

// LogRun records a run summary together with its per-domain events in one
// transaction. Like LogEvent it only logs failures.
func (l *EventLogger) LogRun(ctx context.Context, run Event, items []Event) {
	if l == nil {
		return
	}
	l.stamp(&run)
	err := dbopen.RunTx(ctx, l.db, func(tx *sql.Tx) error {
		for _, ev := range append([]Event{run}, items...) {
			if ev.RunID == "" {
				ev.RunID = run.RunID
			}
			l.stamp(&ev)
			if _, err := tx.ExecContext(ctx, insertEvent, eventArgs(ev)...); err != nil {
				return fmt.Errorf("insert %s: %w", ev.Type, err)
			}
		}
		return nil
	})
	if err != nil {
		l.logger.Error("history run log failed", "error", err, "run_id", run.RunID)
	}
}

// Recent returns the newest events first, at most limit (default 50).
func (l *EventLogger) Recent(ctx context.Context, limit int) ([]Event, error) {
	if l == nil {
		return []Event{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, run_id, event_type, COALESCE(session_id, ''), COALESCE(transport, ''),
			COALESCE(domain, ''), outcome, COALESCE(detail, ''), success, duration_ms, created_at
		FROM domain_events ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Type, &ev.SessionID, &ev.Transport,
			&ev.Domain, &ev.Outcome, &ev.Detail, &ev.Success, &ev.DurationMs, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (l *EventLogger) stamp(ev *Event) {
	if ev.ID == "" {
		ev.ID = l.newID()
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = l.now().Unix()
	}
}

const insertEvent = `
	INSERT INTO domain_events (
		event_id, run_id, event_type, session_id, transport, domain,
		outcome, detail, success, duration_ms, created_at
	) VALUES (?,?,?,?,?,?,?,?,?,?,?)`

func eventArgs(ev Event) []any {
	return []any{
		ev.ID, ev.RunID, ev.Type, ev.SessionID, ev.Transport, ev.Domain,
		ev.Outcome, ev.Detail, ev.Success, ev.DurationMs, ev.CreatedAt,
	}
}
