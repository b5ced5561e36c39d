package memory

import (
	"context"
	"sync"

	"github.com/vietddude/doctrans/internal/core/domain"
	"github.com/vietddude/doctrans/internal/infra/storage"
)

// ArchiveCap bounds the number of snapshots kept before the oldest is
// evicted.
const ArchiveCap = 1000

// JobArchive is the in-memory archive used when no database is configured.
type JobArchive struct {
	mu    sync.RWMutex
	jobs  map[string]domain.JobSnapshot
	order []string
}

// NewJobArchive creates an empty in-memory archive.
func NewJobArchive() *JobArchive {
	return &JobArchive{
		jobs: make(map[string]domain.JobSnapshot),
	}
}

// Save stores a snapshot, replacing any previous record for the same job.
func (a *JobArchive) Save(ctx context.Context, snap domain.JobSnapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.jobs[snap.ID]; !exists {
		a.order = append(a.order, snap.ID)
		if len(a.order) > ArchiveCap {
			evicted := a.order[0]
			a.order = a.order[1:]
			delete(a.jobs, evicted)
		}
	}
	a.jobs[snap.ID] = snap
	return nil
}

// Get retrieves an archived snapshot by job id.
func (a *JobArchive) Get(ctx context.Context, jobID string) (domain.JobSnapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap, ok := a.jobs[jobID]
	if !ok {
		return domain.JobSnapshot{}, storage.ErrNotFound
	}
	return snap, nil
}

// List returns the most recently archived snapshots, newest first.
func (a *JobArchive) List(ctx context.Context, limit int) ([]domain.JobSnapshot, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 || limit > len(a.order) {
		limit = len(a.order)
	}

	out := make([]domain.JobSnapshot, 0, limit)
	for i := len(a.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.jobs[a.order[i]])
	}
	return out, nil
}

// Close is a no-op for the in-memory archive.
func (a *JobArchive) Close() error {
	return nil
}
