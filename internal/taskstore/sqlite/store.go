// Package sqlite is a task store backed by a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"garment-studio/internal/taskstore"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL DEFAULT '',
	prompt TEXT NOT NULL DEFAULT '',
	images INTEGER NOT NULL DEFAULT 0,
	phase TEXT NOT NULL DEFAULT '',
	outputs TEXT NOT NULL DEFAULT '[]',
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS tasks_task_id ON tasks (task_id);`

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the database at path.
func NewStore(path string) (taskstore.Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tasks table: %w", err)
	}
	logrus.WithField("path", path).Debug("Task store opened")
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Create(ctx context.Context, r *taskstore.Record) (string, error) {
	id := ulid.Make().String()
	now := time.Now().UTC()
	outputs, err := json.Marshal(nonNil(r.Outputs))
	if err != nil {
		return "", err
	}

	log := logrus.WithFields(logrus.Fields{"record_id": id, "task_id": r.TaskID})
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, task_id, prompt, images, phase, outputs, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.TaskID, r.Prompt, r.Images, r.Phase, string(outputs), r.Error, now, now)
	if err != nil {
		log.WithError(err).Error("Failed to create task record")
		return "", err
	}
	r.ID, r.CreatedAt, r.UpdatedAt = id, now, now
	log.Debug("Task record created")
	return id, nil
}

func (s *sqliteStore) Update(ctx context.Context, r *taskstore.Record) error {
	now := time.Now().UTC()
	outputs, err := json.Marshal(nonNil(r.Outputs))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET task_id = ?, prompt = ?, images = ?, phase = ?, outputs = ?, error = ?, updated_at = ?
		 WHERE id = ?`,
		r.TaskID, r.Prompt, r.Images, r.Phase, string(outputs), r.Error, now, r.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", taskstore.ErrNotFound, r.ID)
	}
	r.UpdatedAt = now
	return nil
}

const selectCols = `SELECT id, task_id, prompt, images, phase, outputs, error, created_at, updated_at FROM tasks`

func (s *sqliteStore) Get(ctx context.Context, id string) (*taskstore.Record, error) {
	r, err := scan(s.db.QueryRowContext(ctx, selectCols+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", taskstore.ErrNotFound, id)
	}
	return r, err
}

func (s *sqliteStore) FindTask(ctx context.Context, taskID string) (*taskstore.Record, error) {
	r, err := scan(s.db.QueryRowContext(ctx, selectCols+` WHERE task_id = ? ORDER BY id DESC LIMIT 1`, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %s", taskstore.ErrNotFound, taskID)
	}
	return r, err
}

func (s *sqliteStore) List(ctx context.Context, limit int) ([]*taskstore.Record, error) {
	query := selectCols + ` ORDER BY id DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*taskstore.Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scan(row scanner) (*taskstore.Record, error) {
	var r taskstore.Record
	var outputs string
	if err := row.Scan(&r.ID, &r.TaskID, &r.Prompt, &r.Images, &r.Phase, &outputs, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(outputs), &r.Outputs); err != nil {
		return nil, fmt.Errorf("corrupt outputs for %s: %w", r.ID, err)
	}
	return &r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
