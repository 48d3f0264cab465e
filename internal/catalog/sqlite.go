package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"schedbot/internal/model"
)

//go:embed migrations.sql
var migrations string

// SQLiteStore keeps the last good subject catalog across restarts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the catalog database at path. The special
// path ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode = WAL")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous = NORMAL")

	if _, err := db.ExecContext(ctx, migrations); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Replace swaps the whole catalog in one transaction.
func (s *SQLiteStore) Replace(ctx context.Context, subjects []model.Subject) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM subjects`); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO subjects(course, semester, name) VALUES(?,?,?)
		 ON CONFLICT(course, semester, name) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sub := range subjects {
		if _, err := stmt.ExecContext(ctx, int(sub.Course), int(sub.Semester), sub.Name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Subjects(ctx context.Context, course model.Course) ([]model.Subject, error) {
	return s.query(ctx,
		`SELECT course, semester, name FROM subjects WHERE course = ? ORDER BY semester, name`, int(course))
}

func (s *SQLiteStore) AllSubjects(ctx context.Context) ([]model.Subject, error) {
	return s.query(ctx, `SELECT course, semester, name FROM subjects ORDER BY course, semester, name`)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]model.Subject, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Subject, 0)
	for rows.Next() {
		var course, semester int
		var name string
		if err := rows.Scan(&course, &semester, &name); err != nil {
			return nil, err
		}
		out = append(out, model.Subject{Course: model.Course(course), Semester: model.Semester(semester), Name: name})
	}
	return out, rows.Err()
}
