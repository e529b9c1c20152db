package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/reactor/pkg/api"
)

// SQLiteEventStore stores execution events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

// Ensure SQLiteEventStore implements the interfaces.
var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS execution_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			execution_id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			graph TEXT NOT NULL DEFAULT '',
			item TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_execution_events_execution_id ON execution_events(execution_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.ExecutionEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_events (execution_id, parent_id, at, type, graph, item, status, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ExecutionID,
		ev.ParentID,
		at.UnixNano(),
		string(ev.Type),
		ev.Graph,
		ev.Item,
		string(ev.Status),
		ev.Detail,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT execution_id, parent_id, at, type, graph, item, status, detail
		FROM execution_events
		WHERE execution_id = ?
		ORDER BY id ASC`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.ExecutionEvent
	for rows.Next() {
		var (
			id     string
			parent string
			atN    int64
			typ    string
			graph  string
			item   string
			status string
			detail string
		)
		if err := rows.Scan(&id, &parent, &atN, &typ, &graph, &item, &status, &detail); err != nil {
			return nil, err
		}
		out = append(out, api.ExecutionEvent{
			ExecutionID: id,
			ParentID:    parent,
			At:          time.Unix(0, atN),
			Type:        api.EventType(typ),
			Graph:       graph,
			Item:        item,
			Status:      api.MergeStatus(status),
			Detail:      detail,
		})
	}
	return out, rows.Err()
}
