package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tagsync/internal/model"
	"tagsync/internal/propagate"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database. The parent directory
// is created when missing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			created_at INTEGER NOT NULL,
			seed TEXT,
			mode TEXT,
			tag TEXT,
			status TEXT,
			count INTEGER,
			message TEXT,
			patch TEXT,
			undone INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			symbol_id TEXT,
			symbol TEXT,
			action TEXT,
			detail TEXT,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS file_images (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			before BLOB,
			after BLOB,
			PRIMARY KEY (run_id, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run needs an id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, seed, mode, tag, status, count, message, patch, undone)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.UnixNano(), run.Seed, run.Mode, run.Tag, run.Status, run.Count, run.Message, run.Patch, run.Undone); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO audit_entries (run_id, seq, symbol_id, symbol, action, detail) VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer entryStmt.Close()

	for i, e := range run.Entries {
		if _, err := entryStmt.ExecContext(ctx, run.ID, i, e.ID, e.Symbol, string(e.Action), e.Detail); err != nil {
			return fmt.Errorf("failed to insert audit entry: %w", err)
		}
	}

	imageStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO file_images (run_id, seq, path, before, after) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer imageStmt.Close()

	for i, img := range run.Images {
		if _, err := imageStmt.ExecContext(ctx, run.ID, i, img.Path, img.Before, img.After); err != nil {
			return fmt.Errorf("failed to insert file image: %w", err)
		}
	}

	return tx.Commit()
}

const runColumns = `r.id, r.created_at, r.seed, r.mode, r.tag, r.status, r.count, r.message, r.patch, r.undone`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner, extra ...any) (*Run, error) {
	var r Run
	var created int64
	dest := append([]any{&r.ID, &created, &r.Seed, &r.Mode, &r.Tag, &r.Status, &r.Count, &r.Message, &r.Patch, &r.Undone}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created)
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`, (SELECT COUNT(*) FROM file_images f WHERE f.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var files int
		r, err := scanRun(rows, &files)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Files = files
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs r WHERE r.id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol_id, symbol, action, detail FROM audit_entries WHERE run_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e propagate.AuditEntry
		var action string
		if err := rows.Scan(&e.ID, &e.Symbol, &action, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Action = propagate.Action(action)
		r.Entries = append(r.Entries, e)
	}
	return r, rows.Err()
}

func (s *SQLiteStore) LastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+`
		FROM runs r
		WHERE r.undone = 0 AND EXISTS (SELECT 1 FROM file_images f WHERE f.run_id = r.id)
		ORDER BY r.created_at DESC, r.rowid DESC
		LIMIT 1
	`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	return r, err
}

func (s *SQLiteStore) FileImages(ctx context.Context, runID string) ([]model.FileChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, before, after FROM file_images WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query file images: %w", err)
	}
	defer rows.Close()

	var images []model.FileChange
	for rows.Next() {
		var img model.FileChange
		if err := rows.Scan(&img.Path, &img.Before, &img.After); err != nil {
			return nil, fmt.Errorf("failed to scan file image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

func (s *SQLiteStore) MarkUndone(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET undone = 1 WHERE id = ?`, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}
	return nil
}
