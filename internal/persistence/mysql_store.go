package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/reactor/pkg/api"
)

// MySQLModelStore is a ModelStore backed by MySQL. Models are stored as
// JSON documents, like SQLiteModelStore.
//
// The caller imports the driver:
//
//	import _ "github.com/go-sql-driver/mysql"
type MySQLModelStore struct {
	db *sql.DB
}

var _ ModelStore = (*MySQLModelStore)(nil)

// NewMySQLModelStore creates the graph_models table if needed.
func NewMySQLModelStore(db *sql.DB) (*MySQLModelStore, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS graph_models (
			name VARCHAR(255) NOT NULL PRIMARY KEY,
			payload_type VARCHAR(1024) NOT NULL DEFAULT '',
			model LONGBLOB NOT NULL,
			updated_at BIGINT NOT NULL
		)`)
	if err != nil {
		return nil, err
	}
	return &MySQLModelStore{db: db}, nil
}

func (s *MySQLModelStore) SaveModel(ctx context.Context, m api.GraphModel) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graph_models (name, payload_type, model, updated_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			payload_type = VALUES(payload_type),
			model = VALUES(model),
			updated_at = VALUES(updated_at)`,
		m.Name,
		m.Payload.Type,
		data,
		time.Now().UnixNano(),
	)
	return err
}

func (s *MySQLModelStore) GetModel(ctx context.Context, name string) (api.GraphModel, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT model FROM graph_models WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return api.GraphModel{}, ErrModelNotFound
	}
	if err != nil {
		return api.GraphModel{}, err
	}
	return api.ModelFromJSON(data)
}

func (s *MySQLModelStore) ListModels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM graph_models ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *MySQLModelStore) DeleteModel(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM graph_models WHERE name = ?`, name)
	return err
}

// MySQLEventStore stores execution events in MySQL.
type MySQLEventStore struct {
	db *sql.DB
}

var _ EventStore = (*MySQLEventStore)(nil)

// NewMySQLEventStore creates the execution_events table if needed.
func NewMySQLEventStore(db *sql.DB) (*MySQLEventStore, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS execution_events (
			id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
			execution_id VARCHAR(64) NOT NULL,
			parent_id VARCHAR(64) NOT NULL DEFAULT '',
			at BIGINT NOT NULL,
			type VARCHAR(64) NOT NULL,
			graph VARCHAR(255) NOT NULL DEFAULT '',
			item VARCHAR(1024) NOT NULL DEFAULT '',
			status VARCHAR(255) NOT NULL DEFAULT '',
			detail TEXT NOT NULL,
			INDEX idx_execution_events_execution_id (execution_id, id)
		)`)
	if err != nil {
		return nil, err
	}
	return &MySQLEventStore{db: db}, nil
}

func (s *MySQLEventStore) AppendEvent(ctx context.Context, ev api.ExecutionEvent) error {
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

func (s *MySQLEventStore) ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error) {
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
			ev          api.ExecutionEvent
			atN         int64
			typ, status string
		)
		if err := rows.Scan(&ev.ExecutionID, &ev.ParentID, &atN, &typ, &ev.Graph, &ev.Item, &status, &ev.Detail); err != nil {
			return nil, err
		}
		ev.At = time.Unix(0, atN)
		ev.Type = api.EventType(typ)
		ev.Status = api.MergeStatus(status)
		out = append(out, ev)
	}
	return out, rows.Err()
}
