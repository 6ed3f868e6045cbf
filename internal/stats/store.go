package stats

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists counting events to sqlite so counts survive restarts and
// can be queried after the fact. Persistence is advisory: a write failure
// is reported to the caller, who logs it and keeps the pipeline running.
type Store struct {
	db *sql.DB
}

// StoredEvent is one persisted counting event row.
type StoredEvent struct {
	ID        string
	Lane      string
	Class     string
	Timestamp time.Time
}

// LaneTotal is one row of the per-lane rollup query.
type LaneTotal struct {
	Lane  string `json:"lane"`
	Count int64  `json:"count"`
}

// NewStore opens (or creates) the event database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS count_events (
			event_id          TEXT PRIMARY KEY,
			lane              TEXT NOT NULL,
			class             TEXT NOT NULL,
			counted_at_ns     BIGINT NOT NULL,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_count_events_lane
			ON count_events(lane, counted_at_ns);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create event schema: %w", err)
	}

	return &Store{db: db}, nil
}

// RecordEvent persists one counting event.
func (s *Store) RecordEvent(ev Event) error {
	_, err := s.db.Exec(
		`INSERT INTO count_events (event_id, lane, class, counted_at_ns) VALUES (?, ?, ?, ?)`,
		ev.ID, ev.Lane, ev.Class, ev.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record event %s: %w", ev.ID, err)
	}
	return nil
}

// LaneTotals returns per-lane event counts for events in [since, until].
func (s *Store) LaneTotals(since, until time.Time) ([]LaneTotal, error) {
	rows, err := s.db.Query(
		`SELECT lane, COUNT(*) FROM count_events
		 WHERE counted_at_ns BETWEEN ? AND ?
		 GROUP BY lane ORDER BY lane`,
		since.UnixNano(), until.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query lane totals: %w", err)
	}
	defer rows.Close()

	var totals []LaneTotal
	for rows.Next() {
		var t LaneTotal
		if err := rows.Scan(&t.Lane, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan lane total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// EventsSince returns events recorded at or after the given time, oldest
// first, capped at limit rows.
func (s *Store) EventsSince(since time.Time, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.Query(
		`SELECT event_id, lane, class, counted_at_ns FROM count_events
		 WHERE counted_at_ns >= ? ORDER BY counted_at_ns ASC LIMIT ?`,
		since.UnixNano(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var ns int64
		if err := rows.Scan(&ev.ID, &ev.Lane, &ev.Class, &ns); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Timestamp = time.Unix(0, ns)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
