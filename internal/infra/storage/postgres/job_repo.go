package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/doctrans/internal/core/domain"
	"github.com/vietddude/doctrans/internal/infra/storage"
)

// JobRepo implements storage.JobArchive using PostgreSQL. The full snapshot
// is stored as JSONB alongside the columns the status queries filter on.
type JobRepo struct {
	db *DB
}

// NewJobRepo creates a new PostgreSQL job archive.
func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

type jobRow struct {
	ID          string       `db:"id"`
	FilePath    string       `db:"file_path"`
	SourceLang  string       `db:"source_lang"`
	TargetLang  string       `db:"target_lang"`
	Format      string       `db:"format"`
	Status      string       `db:"status"`
	Progress    float64      `db:"overall_progress"`
	RetryCount  int          `db:"retry_count"`
	ErrorCount  int          `db:"error_count"`
	DownloadID  string       `db:"download_id"`
	Snapshot    []byte       `db:"snapshot"`
	CreatedAt   time.Time    `db:"created_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

// Save upserts a terminal snapshot.
func (r *JobRepo) Save(ctx context.Context, snap domain.JobSnapshot) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	row := jobRow{
		ID:         snap.ID,
		FilePath:   snap.FilePath,
		SourceLang: snap.SourceLanguage,
		TargetLang: snap.TargetLanguage,
		Format:     string(snap.Format),
		Status:     string(snap.Status),
		Progress:   snap.OverallProgress,
		RetryCount: snap.RetryCount,
		ErrorCount: len(snap.Errors),
		DownloadID: snap.DownloadID,
		Snapshot:   blob,
		CreatedAt:  snap.CreatedAt,
	}
	if snap.CompletedAt != nil {
		row.CompletedAt = sql.NullTime{Time: *snap.CompletedAt, Valid: true}
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO translation_jobs (
			id, file_path, source_lang, target_lang, format, status,
			overall_progress, retry_count, error_count, download_id,
			snapshot, created_at, completed_at
		) VALUES (
			:id, :file_path, :source_lang, :target_lang, :format, :status,
			:overall_progress, :retry_count, :error_count, :download_id,
			:snapshot, :created_at, :completed_at
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			overall_progress = EXCLUDED.overall_progress,
			retry_count = EXCLUDED.retry_count,
			error_count = EXCLUDED.error_count,
			download_id = EXCLUDED.download_id,
			snapshot = EXCLUDED.snapshot,
			completed_at = EXCLUDED.completed_at
	`, row)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// Get retrieves an archived job by id.
func (r *JobRepo) Get(ctx context.Context, jobID string) (domain.JobSnapshot, error) {
	var row jobRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, file_path, source_lang, target_lang, format, status,
		       overall_progress, retry_count, error_count, download_id,
		       snapshot, created_at, completed_at
		FROM translation_jobs WHERE id = $1
	`, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobSnapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return domain.JobSnapshot{}, fmt.Errorf("failed to get job: %w", err)
	}
	return decodeSnapshot(row)
}

// List retrieves the most recently finished jobs, newest first.
func (r *JobRepo) List(ctx context.Context, limit int) ([]domain.JobSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []jobRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, file_path, source_lang, target_lang, format, status,
		       overall_progress, retry_count, error_count, download_id,
		       snapshot, created_at, completed_at
		FROM translation_jobs
		ORDER BY completed_at DESC NULLS LAST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := make([]domain.JobSnapshot, 0, len(rows))
	for _, row := range rows {
		snap, err := decodeSnapshot(row)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Close closes the underlying connection pool.
func (r *JobRepo) Close() error {
	return r.db.Close()
}

func decodeSnapshot(row jobRow) (domain.JobSnapshot, error) {
	var snap domain.JobSnapshot
	if err := json.Unmarshal(row.Snapshot, &snap); err != nil {
		return domain.JobSnapshot{}, fmt.Errorf("failed to decode snapshot for job %s: %w", row.ID, err)
	}
	return snap, nil
}
