package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/reactor/pkg/api"
)

// SQLiteModelStore is a ModelStore backed by SQLite. Models are stored as
// JSON documents.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteModelStore struct {
	db *sql.DB
}

// Ensure SQLiteModelStore implements ModelStore.
var _ ModelStore = (*SQLiteModelStore)(nil)

// NewSQLiteModelStore initializes the required schema in the given
// database and returns a new SQLiteModelStore.
func NewSQLiteModelStore(db *sql.DB) (*SQLiteModelStore, error) {
	s := &SQLiteModelStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteModelStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS graph_models (
			name TEXT PRIMARY KEY,
			payload_type TEXT NOT NULL DEFAULT '',
			model BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
	)
	return err
}

func (s *SQLiteModelStore) SaveModel(ctx context.Context, m api.GraphModel) error {
	data, err := m.ToJSON()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO graph_models (name, payload_type, model, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			payload_type = excluded.payload_type,
			model = excluded.model,
			updated_at = excluded.updated_at`,
		m.Name,
		m.Payload.Type,
		data,
		time.Now().UnixNano(),
	)
	return err
}

func (s *SQLiteModelStore) GetModel(ctx context.Context, name string) (api.GraphModel, error) {
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

func (s *SQLiteModelStore) ListModels(ctx context.Context) ([]string, error) {
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

func (s *SQLiteModelStore) DeleteModel(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM graph_models WHERE name = ?`, name)
	return err
}
