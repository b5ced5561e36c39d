package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a translation job. Active jobs move
// linearly through the stage statuses; failed and cancelled are reachable
// from any non-terminal state.
type JobStatus string

const (
	JobStatusPending           JobStatus = "pending"
	JobStatusParsing           JobStatus = "parsing"
	JobStatusAnalyzingLayout   JobStatus = "analyzing_layout"
	JobStatusTranslating       JobStatus = "translating"
	JobStatusFittingText       JobStatus = "fitting_text"
	JobStatusReconstructing    JobStatus = "reconstructing"
	JobStatusAssessingQuality  JobStatus = "assessing_quality"
	JobStatusPreparingDownload JobStatus = "preparing_download"
	JobStatusCompleted         JobStatus = "completed"
	JobStatusFailed            JobStatus = "failed"
	JobStatusCancelled         JobStatus = "cancelled"
)

// IsTerminal reports whether no further stage execution may occur.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// StageName identifies one step of the fixed seven-step pipeline.
type StageName string

const (
	StageParsing           StageName = "parsing"
	StageAnalyzingLayout   StageName = "analyzing_layout"
	StageTranslating       StageName = "translating"
	StageFittingText       StageName = "fitting_text"
	StageReconstructing    StageName = "reconstructing"
	StageAssessingQuality  StageName = "assessing_quality"
	StagePreparingDownload StageName = "preparing_download"
)

// StageOrder returns the pipeline stages in execution order.
func StageOrder() []StageName {
	return []StageName{
		StageParsing,
		StageAnalyzingLayout,
		StageTranslating,
		StageFittingText,
		StageReconstructing,
		StageAssessingQuality,
		StagePreparingDownload,
	}
}

// StageWeight returns the cumulative overall-progress value reached when the
// given stage completes. Values are monotonically increasing in stage order
// and the final stage always lands on 100.
func StageWeight(name StageName) float64 {
	switch name {
	case StageParsing:
		return 15
	case StageAnalyzingLayout:
		return 25
	case StageTranslating:
		return 65
	case StageFittingText:
		return 75
	case StageReconstructing:
		return 85
	case StageAssessingQuality:
		return 90
	case StagePreparingDownload:
		return 100
	default:
		return 0
	}
}

// StageStatus is the per-stage execution state.
type StageStatus string

const (
	StageStatusPending   StageStatus = "pending"
	StageStatusRunning   StageStatus = "running"
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
)

// StageProgress tracks the execution of a single pipeline stage for one job.
// It is created when the job is initialised and mutated only by the stage
// executing on the job's behalf.
type StageProgress struct {
	Name           StageName
	Status         StageStatus
	Progress       float64
	ItemsProcessed int
	TotalItems     int
	StartTime      *time.Time
	EndTime        *time.Time
	Errors         []*Error
}

// Completed reports whether the stage has stamped its end time.
func (p *StageProgress) Completed() bool {
	return p.EndTime != nil
}

// Duration returns the stage duration, or zero while incomplete.
func (p *StageProgress) Duration() time.Duration {
	if p.StartTime == nil || p.EndTime == nil {
		return 0
	}
	return p.EndTime.Sub(*p.StartTime)
}

// TranslationJob is the unit of work driven through the pipeline. It is owned
// exclusively by the orchestrator while active and becomes read-only once
// moved to history.
type TranslationJob struct {
	ID             string
	FilePath       string
	SourceLanguage string
	TargetLanguage string
	Format         DocumentFormat

	Status          JobStatus
	CurrentStage    StageName
	OverallProgress float64
	Stages          map[StageName]*StageProgress

	Errors     []*Error
	RetryCount int
	MaxRetries int

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	// Stage results. Populated as the pipeline advances.
	Document          *DocumentStructure
	LayoutAnalysis    []LayoutAnalysis
	TranslatedRegions map[int][]AdjustedRegion
	QualityReport     *QualityReport
	DownloadID        string
}

// NewTranslationJob creates a pending job with all pipeline stages
// pre-registered.
func NewTranslationJob(filePath, sourceLang, targetLang string, format DocumentFormat, maxRetries int) *TranslationJob {
	job := &TranslationJob{
		ID:                uuid.New().String(),
		FilePath:          filePath,
		SourceLanguage:    sourceLang,
		TargetLanguage:    targetLang,
		Format:            format,
		Status:            JobStatusPending,
		Stages:            make(map[StageName]*StageProgress, len(StageOrder())),
		TranslatedRegions: make(map[int][]AdjustedRegion),
		MaxRetries:        maxRetries,
		CreatedAt:         time.Now(),
	}
	for _, name := range StageOrder() {
		job.Stages[name] = &StageProgress{Name: name, Status: StageStatusPending}
	}
	return job
}

// Duration returns the total processing time, or zero while incomplete.
func (j *TranslationJob) Duration() time.Duration {
	if j.StartedAt == nil || j.CompletedAt == nil {
		return 0
	}
	return j.CompletedAt.Sub(*j.StartedAt)
}

// ResetForRetry returns the job to pending with all stage progress and
// accumulated errors cleared. The retry counter is incremented by the caller.
func (j *TranslationJob) ResetForRetry() {
	j.Status = JobStatusPending
	j.CurrentStage = ""
	j.OverallProgress = 0
	j.Errors = nil
	j.StartedAt = nil
	j.CompletedAt = nil
	j.Document = nil
	j.LayoutAnalysis = nil
	j.TranslatedRegions = make(map[int][]AdjustedRegion)
	j.QualityReport = nil
	j.DownloadID = ""
	for _, stage := range j.Stages {
		stage.Status = StageStatusPending
		stage.Progress = 0
		stage.ItemsProcessed = 0
		stage.TotalItems = 0
		stage.StartTime = nil
		stage.EndTime = nil
		stage.Errors = nil
	}
}

// StageSnapshot is a read-only copy of one stage's progress.
type StageSnapshot struct {
	Name           StageName
	Status         StageStatus
	Progress       float64
	ItemsProcessed int
	TotalItems     int
	Duration       time.Duration
	ErrorCount     int
}

// JobSnapshot is an immutable view of a job, safe to hand to callers while
// the job is still mutating.
type JobSnapshot struct {
	ID              string
	FilePath        string
	SourceLanguage  string
	TargetLanguage  string
	Format          DocumentFormat
	Status          JobStatus
	CurrentStage    StageName
	OverallProgress float64
	Stages          []StageSnapshot
	Errors          []*Error
	RetryCount      int
	MaxRetries      int
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Duration        time.Duration
	DownloadID      string
}

// Snapshot copies the job's observable state. Callers must hold whatever lock
// guards the job while taking the snapshot.
func (j *TranslationJob) Snapshot() JobSnapshot {
	snap := JobSnapshot{
		ID:              j.ID,
		FilePath:        j.FilePath,
		SourceLanguage:  j.SourceLanguage,
		TargetLanguage:  j.TargetLanguage,
		Format:          j.Format,
		Status:          j.Status,
		CurrentStage:    j.CurrentStage,
		OverallProgress: j.OverallProgress,
		RetryCount:      j.RetryCount,
		MaxRetries:      j.MaxRetries,
		CreatedAt:       j.CreatedAt,
		Duration:        j.Duration(),
		DownloadID:      j.DownloadID,
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		snap.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		snap.CompletedAt = &t
	}
	snap.Errors = append(snap.Errors, j.Errors...)
	for _, name := range StageOrder() {
		stage := j.Stages[name]
		snap.Stages = append(snap.Stages, StageSnapshot{
			Name:           stage.Name,
			Status:         stage.Status,
			Progress:       stage.Progress,
			ItemsProcessed: stage.ItemsProcessed,
			TotalItems:     stage.TotalItems,
			Duration:       stage.Duration(),
			ErrorCount:     len(stage.Errors),
		})
	}
	return snap
}
