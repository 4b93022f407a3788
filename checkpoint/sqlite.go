package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists records in a SQLite database, so approvals can be written by a
// different process than the one waiting on them (pair it with Config.PollInterval).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at path and initializes the
// schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			agent_id TEXT NOT NULL DEFAULT '',
			session_id TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			resolved_at INTEGER NOT NULL DEFAULT 0,
			feedback TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_status ON checkpoints(status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON checkpoints(session_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	data := rec.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal checkpoint data: %w", err)
	}

	var resolved int64
	if !rec.ResolvedAt.IsZero() {
		resolved = rec.ResolvedAt.UnixNano()
	}

	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO checkpoints
		(id, name, agent_id, session_id, data, status, created_at, resolved_at, feedback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Name, rec.AgentID, rec.SessionID, string(dataJSON), string(rec.Status),
		rec.CreatedAt.UnixNano(), resolved, rec.Feedback)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", rec.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, name, agent_id, session_id, data, status, created_at, resolved_at, feedback
	FROM checkpoints`

func (s *SQLiteStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *SQLiteStore) List(ctx context.Context, status Status) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+` WHERE status = ? ORDER BY created_at, id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec       Record
		dataJSON  string
		status    string
		createdAt int64
		resolved  int64
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.AgentID, &rec.SessionID, &dataJSON, &status,
		&createdAt, &resolved, &rec.Feedback)
	if err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(dataJSON), &rec.Data); err != nil {
		return Record{}, fmt.Errorf("unmarshal checkpoint data %s: %w", rec.ID, err)
	}
	rec.Status = Status(status)
	rec.CreatedAt = time.Unix(0, createdAt).UTC()
	if resolved != 0 {
		rec.ResolvedAt = time.Unix(0, resolved).UTC()
	}
	return rec, nil
}

var _ Store = (*SQLiteStore)(nil)
