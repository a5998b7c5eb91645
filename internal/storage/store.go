package storage

import (
	"context"
	"errors"
	"time"

	"tagsync/internal/model"
	"tagsync/internal/propagate"
)

var (
	ErrNoRuns      = errors.New("no runs recorded")
	ErrRunNotFound = errors.New("run not found")
)

// Store combines run history with its lifecycle.
type Store interface {
	HistoryStore
	Close() error
}

// HistoryStore persists sync reports and the file pre-images undo needs.
type HistoryStore interface {
	// RecordRun stores a run with its audit entries and file images.
	RecordRun(ctx context.Context, run *Run) error

	// ListRuns returns the newest runs first, without entries or images.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// GetRun loads a run with its audit entries.
	GetRun(ctx context.Context, id string) (*Run, error)

	// LastRun returns the newest run that wrote files and was not undone.
	LastRun(ctx context.Context) (*Run, error)

	// FileImages returns the before and after content of every file a run
	// changed.
	FileImages(ctx context.Context, runID string) ([]model.FileChange, error)

	// MarkUndone flags a run so undo skips it.
	MarkUndone(ctx context.Context, runID string) error
}

// Run is one non-dry-run sync.
type Run struct {
	ID        string
	CreatedAt time.Time
	Seed      string
	Mode      string
	Tag       string
	Status    string
	Count     int
	Message   string
	Patch     string
	Undone    bool

	Entries []propagate.AuditEntry
	Images  []model.FileChange
	// Files is the number of stored images, filled by ListRuns.
	Files int
}
