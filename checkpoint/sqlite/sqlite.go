package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps the execution context of export jobs in a local SQLite database.
// Suits single host deployments where a Postgres server is not available.
type SQLiteStore struct {
	db  *sql.DB
	job string
}

type SQLiteOption func(s *SQLiteStore)

func WithJobName(job string) SQLiteOption {
	return func(s *SQLiteStore) {
		s.job = job
	}
}

// Opens (or creates) the database at `path` and makes sure the checkpoint table exists.
func NewSQLiteStore(path string, options ...SQLiteOption) (*SQLiteStore, error) {
	if path == "" {
		path = "checkpoint.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, errors.Join(errors.New("failed to create checkpoint database directory"), err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Join(errors.New("failed to open sqlite database"), err)
	}
	// Single writer. Avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS checkpoint (
		job TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (job, key)
	)`); err != nil {
		db.Close()
		return nil, errors.Join(errors.New("failed to create checkpoint table"), err)
	}

	store := &SQLiteStore{db: db, job: "default"}
	for _, option := range options {
		option(store)
	}
	return store, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM checkpoint WHERE job = ?`, s.job)
	if err != nil {
		return nil, errors.Join(errors.New("failed to select checkpoint"), err)
	}
	defer func() { _ = rows.Close() }()

	values := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Join(errors.New("failed to scan checkpoint row"), err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(errors.New("errors while reading checkpoint"), err)
	}
	return values, nil
}

// Save replaces the execution context of the job in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, values map[string]string) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Join(errors.New("failed to begin checkpoint transaction"), err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint WHERE job = ?`, s.job); err != nil {
		return errors.Join(errors.New("failed to delete previous checkpoint"), err)
	}
	for key, value := range values {
		if _, err := tx.ExecContext(ctx, `INSERT INTO checkpoint(job, key, value) VALUES(?, ?, ?) ON CONFLICT(job, key) DO UPDATE SET value=excluded.value`, s.job, key, value); err != nil {
			return errors.Join(errors.New("failed to upsert checkpoint key "+key), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Join(errors.New("failed to commit checkpoint transaction"), err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM checkpoint WHERE job = ?`, s.job); err != nil {
		return errors.Join(errors.New("failed to delete checkpoint"), err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
