package orchestrator

import (
	"log/slog"
	"time"

	"github.com/vietddude/doctrans/internal/core/domain"
	"github.com/vietddude/doctrans/internal/pipeline/metrics"
)

// sweepLoop periodically reclaims jobs that exceeded the job timeout.
// A worker goroutine stuck in a collaborator call keeps running, but the job
// is force-failed and surfaced to callers; the late result is discarded when
// the worker observes the terminal status.
func (o *Orchestrator) sweepLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(o.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stopCh:
			return
		case <-ticker.C:
			o.sweepOnce()
		}
	}
}

// sweepOnce force-fails every active job whose processing time exceeded the
// job timeout. Returns the number of jobs reclaimed.
func (o *Orchestrator) sweepOnce() int {
	o.mu.RLock()
	entries := make([]*jobEntry, 0, len(o.active))
	for _, entry := range o.active {
		entries = append(entries, entry)
	}
	o.mu.RUnlock()

	reclaimed := 0
	for _, entry := range entries {
		if o.reclaim(entry) {
			reclaimed++
		}
	}

	if reclaimed > 0 {
		o.mu.Lock()
		o.reclaimed += reclaimed
		o.mu.Unlock()
		slog.Warn("Reclamation sweep force-failed jobs", slog.Int("count", reclaimed))
	}
	return reclaimed
}

func (o *Orchestrator) reclaim(entry *jobEntry) bool {
	entry.mu.Lock()
	job := entry.job
	if job.Status.IsTerminal() {
		entry.mu.Unlock()
		return false
	}

	started := job.CreatedAt
	if job.StartedAt != nil {
		started = *job.StartedAt
	}
	if time.Since(started) <= o.cfg.JobTimeout {
		entry.mu.Unlock()
		return false
	}

	ferr := domain.NewJobTimeoutError(o.cfg.JobTimeout).WithContext(domain.ErrorContext{
		JobID:     job.ID,
		FilePath:  job.FilePath,
		Stage:     job.CurrentStage,
		Component: "reclaimer",
	})
	job.Errors = append(job.Errors, ferr)
	if stage, ok := job.Stages[job.CurrentStage]; ok {
		stage.Errors = append(stage.Errors, ferr)
		stage.Status = domain.StageStatusFailed
		now := time.Now()
		stage.EndTime = &now
	}
	job.Status = domain.JobStatusFailed
	now := time.Now()
	job.CompletedAt = &now
	entry.mu.Unlock()

	metrics.JobsReclaimed.Inc()
	metrics.ErrorsTotal.WithLabelValues(ferr.Code, string(ferr.Category)).Inc()
	slog.Warn("Job reclaimed after timeout",
		slog.String("job_id", job.ID),
		slog.Duration("timeout", o.cfg.JobTimeout),
	)

	o.finalize(entry)
	return true
}
