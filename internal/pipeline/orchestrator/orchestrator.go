package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/doctrans/internal/core/domain"
	"github.com/vietddude/doctrans/internal/infra/storage"
	"github.com/vietddude/doctrans/internal/pipeline/metrics"
	"github.com/vietddude/doctrans/internal/pipeline/recovery"
)

// Config bounds the orchestrator's concurrency, timing and bookkeeping.
type Config struct {
	MaxConcurrentJobs       int
	JobTimeout              time.Duration
	SweepInterval           time.Duration
	MaxJobHistory           int
	MaxRetries              int
	EnableQualityAssessment bool
	QualityThreshold        float64
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 5
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Minute
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.MaxJobHistory <= 0 {
		c.MaxJobHistory = 100
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.QualityThreshold <= 0 {
		c.QualityThreshold = 0.8
	}
}

// SubmitRequest carries the caller's inputs for a new job. Format is detected
// from the file path when left empty.
type SubmitRequest struct {
	FilePath       string
	SourceLanguage string
	TargetLanguage string
	Format         domain.DocumentFormat
}

// ProgressCallback receives a snapshot after every observable job change.
// Callbacks run on the job's goroutine; panics are isolated.
type ProgressCallback func(domain.JobSnapshot)

// jobEntry pairs a job with its recovery context and per-job lock. The lock
// guards all job mutation; collaborator calls happen outside it.
type jobEntry struct {
	mu        sync.Mutex
	job       *domain.TranslationJob
	rctx      *recovery.JobContext
	finalized bool

	translated    map[int][]string
	reconstructed []byte
}

// Orchestrator owns the job registry and drives every job through the
// pipeline on its own goroutine, bounded by a concurrency semaphore.
type Orchestrator struct {
	cfg     Config
	collab  Collaborators
	auto    *recovery.AutoHandler
	archive storage.JobArchive

	mu      sync.RWMutex
	active  map[string]*jobEntry
	history []*jobEntry

	submitted int
	completed int
	failed    int
	cancelled int
	reclaimed int
	totalDur  time.Duration

	sem chan struct{}

	cbMu      sync.RWMutex
	callbacks []ProgressCallback

	baseCtx context.Context
	cancel  context.CancelFunc
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New builds an orchestrator. The archive may be nil, in which case finished
// jobs live only in the bounded in-memory history.
func New(cfg Config, collab Collaborators, auto *recovery.AutoHandler, archive storage.JobArchive) *Orchestrator {
	cfg.applyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:     cfg,
		collab:  collab,
		auto:    auto,
		archive: archive,
		active:  make(map[string]*jobEntry),
		sem:     make(chan struct{}, cfg.MaxConcurrentJobs),
		baseCtx: ctx,
		cancel:  cancel,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the reclamation sweep.
func (o *Orchestrator) Start() {
	o.wg.Add(1)
	go o.sweepLoop()
	slog.Info("Orchestrator started",
		slog.Int("max_concurrent_jobs", o.cfg.MaxConcurrentJobs),
		slog.Duration("job_timeout", o.cfg.JobTimeout),
	)
}

// Stop halts the sweep, cancels in-flight collaborator calls and waits for
// job goroutines to drain, bounded by ctx.
func (o *Orchestrator) Stop(ctx context.Context) error {
	close(o.stopCh)
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Orchestrator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit validates the request, registers a pending job and schedules it.
// Returns the new job id.
func (o *Orchestrator) Submit(req SubmitRequest) (string, error) {
	if req.FilePath == "" {
		return "", domain.NewValidationError("file path is required")
	}
	if req.TargetLanguage == "" {
		return "", domain.NewValidationError("target language is required")
	}

	format := req.Format
	if format == "" {
		format = domain.DetectFormat(req.FilePath)
	} else if !formatSupported(format) {
		supported := make([]string, 0, len(domain.SupportedFormats()))
		for _, f := range domain.SupportedFormats() {
			supported = append(supported, string(f))
		}
		return "", domain.NewInvalidFormatError(string(format), supported)
	}

	job := domain.NewTranslationJob(req.FilePath, req.SourceLanguage, req.TargetLanguage, format, o.cfg.MaxRetries)
	entry := &jobEntry{
		job:  job,
		rctx: recovery.NewJobContext(job.ID, o.cfg.MaxRetries, o.cfg.QualityThreshold, o.cfg.JobTimeout),
	}

	o.mu.Lock()
	o.active[job.ID] = entry
	o.submitted++
	metrics.ActiveJobs.Set(float64(len(o.active)))
	o.mu.Unlock()
	metrics.JobsSubmitted.Inc()

	slog.Info("Job submitted",
		slog.String("job_id", job.ID),
		slog.String("file", job.FilePath),
		slog.String("format", string(job.Format)),
		slog.String("target_lang", job.TargetLanguage),
	)

	o.wg.Add(1)
	go o.run(entry)
	return job.ID, nil
}

// run drives one job to a terminal state. Admission is fail-fast: a job that
// cannot get a semaphore slot fails immediately with a concurrency error
// instead of queueing.
func (o *Orchestrator) run(entry *jobEntry) {
	defer o.wg.Done()

	select {
	case o.sem <- struct{}{}:
	default:
		ferr := domain.NewConcurrencyLimitError(o.cfg.MaxConcurrentJobs).WithContext(domain.ErrorContext{
			JobID:     entry.job.ID,
			Component: "orchestrator",
		})
		entry.mu.Lock()
		if !entry.job.Status.IsTerminal() {
			entry.job.Errors = append(entry.job.Errors, ferr)
			entry.job.Status = domain.JobStatusFailed
			now := time.Now()
			entry.job.CompletedAt = &now
		}
		entry.mu.Unlock()
		metrics.ErrorsTotal.WithLabelValues(ferr.Code, string(ferr.Category)).Inc()
		o.finalize(entry)
		return
	}
	defer func() { <-o.sem }()

	entry.mu.Lock()
	if entry.job.Status.IsTerminal() {
		entry.mu.Unlock()
		o.finalize(entry)
		return
	}
	now := time.Now()
	entry.job.StartedAt = &now
	entry.mu.Unlock()

	o.process(entry)
	o.finalize(entry)
}

// GetStatus returns a snapshot for an active or remembered job.
func (o *Orchestrator) GetStatus(jobID string) (domain.JobSnapshot, bool) {
	entry := o.lookup(jobID)
	if entry == nil {
		return domain.JobSnapshot{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.job.Snapshot(), true
}

// Cancel requests cancellation of an active job. The running stage finishes
// its current collaborator call; the job stops at the next stage boundary.
// Returns false for unknown or already-terminal jobs.
func (o *Orchestrator) Cancel(jobID string) bool {
	o.mu.RLock()
	entry := o.active[jobID]
	o.mu.RUnlock()
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.job.Status.IsTerminal() {
		return false
	}
	entry.job.Status = domain.JobStatusCancelled
	now := time.Now()
	entry.job.CompletedAt = &now
	slog.Info("Job cancelled", slog.String("job_id", jobID))
	return true
}

// Retry reschedules a failed job from scratch, provided its retry budget is
// not exhausted. Jobs already moved to history are revived into the active
// registry.
func (o *Orchestrator) Retry(jobID string) bool {
	entry := o.lookup(jobID)
	if entry == nil {
		return false
	}

	entry.mu.Lock()
	// Only fully finalized jobs are retryable; a worker may still be
	// between marking the job failed and finalizing it.
	if !entry.finalized || entry.job.Status != domain.JobStatusFailed || entry.job.RetryCount >= entry.job.MaxRetries {
		entry.mu.Unlock()
		return false
	}
	entry.job.RetryCount++
	retryCount := entry.job.RetryCount
	entry.job.ResetForRetry()
	entry.rctx = recovery.NewJobContext(entry.job.ID, o.cfg.MaxRetries, o.cfg.QualityThreshold, o.cfg.JobTimeout)
	entry.finalized = false
	entry.translated = nil
	entry.reconstructed = nil
	entry.mu.Unlock()

	o.mu.Lock()
	if _, ok := o.active[jobID]; !ok {
		o.history = removeEntry(o.history, entry)
		o.active[jobID] = entry
		metrics.ActiveJobs.Set(float64(len(o.active)))
	}
	o.mu.Unlock()

	slog.Info("Job retry scheduled",
		slog.String("job_id", jobID),
		slog.Int("retry_count", retryCount),
	)

	o.wg.Add(1)
	go o.run(entry)
	return true
}

// AddProgressCallback registers a callback invoked with a snapshot after
// every observable change.
func (o *Orchestrator) AddProgressCallback(cb ProgressCallback) {
	o.cbMu.Lock()
	defer o.cbMu.Unlock()
	o.callbacks = append(o.callbacks, cb)
}

func (o *Orchestrator) notify(snap domain.JobSnapshot) {
	o.cbMu.RLock()
	callbacks := make([]ProgressCallback, len(o.callbacks))
	copy(callbacks, o.callbacks)
	o.cbMu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Warn("Progress callback panicked",
						slog.String("job_id", snap.ID),
						slog.Any("panic", r),
					)
				}
			}()
			cb(snap)
		}()
	}
}

// finalize moves a terminal job from the active registry to the bounded
// history, evicting the oldest record when full. Idempotent; the worker
// goroutine and the reclamation sweep may race to call it.
func (o *Orchestrator) finalize(entry *jobEntry) {
	entry.mu.Lock()
	if entry.finalized {
		entry.mu.Unlock()
		return
	}
	entry.finalized = true
	if !entry.job.Status.IsTerminal() {
		entry.job.Status = domain.JobStatusFailed
	}
	if entry.job.CompletedAt == nil {
		now := time.Now()
		entry.job.CompletedAt = &now
	}
	snap := entry.job.Snapshot()
	entry.mu.Unlock()

	o.mu.Lock()
	delete(o.active, snap.ID)
	o.history = append(o.history, entry)
	if len(o.history) > o.cfg.MaxJobHistory {
		o.history = o.history[len(o.history)-o.cfg.MaxJobHistory:]
	}
	switch snap.Status {
	case domain.JobStatusCompleted:
		o.completed++
	case domain.JobStatusFailed:
		o.failed++
	case domain.JobStatusCancelled:
		o.cancelled++
	}
	o.totalDur += snap.Duration
	metrics.ActiveJobs.Set(float64(len(o.active)))
	o.mu.Unlock()

	metrics.JobsFinished.WithLabelValues(string(snap.Status)).Inc()
	if snap.Duration > 0 {
		metrics.JobDuration.Observe(snap.Duration.Seconds())
	}

	if o.archive != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := o.archive.Save(ctx, snap); err != nil {
			slog.Warn("Failed to archive job",
				slog.String("job_id", snap.ID),
				slog.String("error", err.Error()),
			)
		}
		cancel()
	}

	slog.Info("Job finished",
		slog.String("job_id", snap.ID),
		slog.String("status", string(snap.Status)),
		slog.Duration("duration", snap.Duration),
	)
	o.notify(snap)
}

func (o *Orchestrator) lookup(jobID string) *jobEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if entry, ok := o.active[jobID]; ok {
		return entry
	}
	for i := len(o.history) - 1; i >= 0; i-- {
		if o.history[i].job.ID == jobID {
			return o.history[i]
		}
	}
	return nil
}

// Stats is the orchestrator's aggregate view.
type Stats struct {
	ActiveJobs     int
	HistorySize    int
	TotalSubmitted int
	Completed      int
	Failed         int
	Cancelled      int
	Reclaimed      int
	AvgDuration    time.Duration
}

// Statistics reports registry counts and terminal outcomes.
func (o *Orchestrator) Statistics() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	stats := Stats{
		ActiveJobs:     len(o.active),
		HistorySize:    len(o.history),
		TotalSubmitted: o.submitted,
		Completed:      o.completed,
		Failed:         o.failed,
		Cancelled:      o.cancelled,
		Reclaimed:      o.reclaimed,
	}
	finished := o.completed + o.failed + o.cancelled
	if finished > 0 {
		stats.AvgDuration = o.totalDur / time.Duration(finished)
	}
	return stats
}

func formatSupported(format domain.DocumentFormat) bool {
	for _, f := range domain.SupportedFormats() {
		if f == format {
			return true
		}
	}
	return false
}

func removeEntry(entries []*jobEntry, target *jobEntry) []*jobEntry {
	for i, e := range entries {
		if e == target {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}
