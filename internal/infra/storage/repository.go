package storage

import (
	"context"
	"errors"

	"github.com/vietddude/doctrans/internal/core/domain"
)

var (
	// ErrNotFound is returned when no archived job matches the given id
	ErrNotFound = errors.New("job not found")
)

// JobArchive handles persistence of terminal job snapshots. The in-memory
// registry remains the source of truth for active jobs; the archive only
// ever sees finished ones.
type JobArchive interface {
	// Save persists a terminal snapshot, replacing any previous record
	Save(ctx context.Context, snap domain.JobSnapshot) error

	// Get retrieves an archived job by id
	Get(ctx context.Context, jobID string) (domain.JobSnapshot, error)

	// List retrieves the most recently finished jobs, newest first
	List(ctx context.Context, limit int) ([]domain.JobSnapshot, error)

	// Close releases the underlying store
	Close() error
}
