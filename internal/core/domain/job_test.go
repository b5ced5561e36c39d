package domain

import (
	"testing"
	"time"
)

func TestStageWeights_Monotonic(t *testing.T) {
	prev := 0.0
	for _, name := range StageOrder() {
		w := StageWeight(name)
		if w <= prev {
			t.Errorf("stage %s weight %.0f is not greater than previous %.0f", name, w, prev)
		}
		prev = w
	}
	if final := StageWeight(StageOrder()[len(StageOrder())-1]); final != 100 {
		t.Errorf("final stage weight should be 100, got %.0f", final)
	}
}

func TestNewTranslationJob_Initial(t *testing.T) {
	job := NewTranslationJob("/tmp/doc.pdf", "en", "vi", FormatPDF, 3)

	if job.ID == "" {
		t.Error("expected generated job id")
	}
	if job.Status != JobStatusPending {
		t.Errorf("expected pending status, got %s", job.Status)
	}
	if len(job.Stages) != len(StageOrder()) {
		t.Fatalf("expected %d pre-registered stages, got %d", len(StageOrder()), len(job.Stages))
	}
	for _, name := range StageOrder() {
		stage := job.Stages[name]
		if stage == nil {
			t.Fatalf("stage %s not registered", name)
		}
		if stage.Status != StageStatusPending {
			t.Errorf("stage %s should start pending, got %s", name, stage.Status)
		}
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	terminal := []JobStatus{JobStatusCompleted, JobStatusFailed, JobStatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	active := []JobStatus{JobStatusPending, JobStatusParsing, JobStatusTranslating, JobStatusPreparingDownload}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestResetForRetry(t *testing.T) {
	job := NewTranslationJob("/tmp/doc.pdf", "en", "vi", FormatPDF, 3)

	now := time.Now()
	job.Status = JobStatusFailed
	job.CurrentStage = StageTranslating
	job.OverallProgress = 42
	job.StartedAt = &now
	job.CompletedAt = &now
	job.Errors = append(job.Errors, NewUnknownError(nil))
	job.Document = &DocumentStructure{}
	stage := job.Stages[StageParsing]
	stage.Status = StageStatusCompleted
	stage.Progress = 100
	stage.StartTime = &now
	stage.EndTime = &now

	job.ResetForRetry()

	if job.Status != JobStatusPending {
		t.Errorf("expected pending after reset, got %s", job.Status)
	}
	if job.OverallProgress != 0 || job.CurrentStage != "" {
		t.Error("expected progress and stage cleared")
	}
	if len(job.Errors) != 0 {
		t.Error("expected errors cleared")
	}
	if job.Document != nil || job.StartedAt != nil || job.CompletedAt != nil {
		t.Error("expected results and timestamps cleared")
	}
	for _, name := range StageOrder() {
		s := job.Stages[name]
		if s.Status != StageStatusPending || s.Progress != 0 || s.StartTime != nil || s.EndTime != nil {
			t.Errorf("stage %s not fully reset", name)
		}
	}
}

func TestSnapshot_Isolated(t *testing.T) {
	job := NewTranslationJob("/tmp/doc.pdf", "en", "vi", FormatPDF, 3)
	job.Stages[StageParsing].Status = StageStatusRunning

	snap := job.Snapshot()

	// Mutating the job after the snapshot must not be visible
	job.Status = JobStatusFailed
	job.Stages[StageParsing].Status = StageStatusFailed
	job.Errors = append(job.Errors, NewUnknownError(nil))

	if snap.Status != JobStatusPending {
		t.Errorf("snapshot status mutated, got %s", snap.Status)
	}
	if snap.Stages[0].Status != StageStatusRunning {
		t.Errorf("snapshot stage status mutated, got %s", snap.Stages[0].Status)
	}
	if len(snap.Errors) != 0 {
		t.Error("snapshot errors mutated")
	}
	if len(snap.Stages) != len(StageOrder()) {
		t.Errorf("expected %d stage snapshots, got %d", len(StageOrder()), len(snap.Stages))
	}
}
