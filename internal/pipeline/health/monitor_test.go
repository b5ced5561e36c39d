package health

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/doctrans/internal/pipeline/orchestrator"
	"github.com/vietddude/doctrans/internal/pipeline/recovery"
)

// ============================================================
// Mocks
// ============================================================

type fakeJobStats struct {
	stats orchestrator.Stats
}

func (f *fakeJobStats) Statistics() orchestrator.Stats { return f.stats }

type fakeErrorStats struct {
	stats recovery.ErrorStats
}

func (f *fakeErrorStats) Statistics() recovery.ErrorStats { return f.stats }

type fakeRecoveryStats struct {
	stats recovery.Stats
}

func (f *fakeRecoveryStats) Statistics() recovery.Stats { return f.stats }

type fakePinger struct {
	err error
}

func (f *fakePinger) Health(ctx context.Context) error { return f.err }

// ============================================================
// Monitor
// ============================================================

func TestCheckHealth_AllHealthy(t *testing.T) {
	jobs := &fakeJobStats{stats: orchestrator.Stats{ActiveJobs: 2, Completed: 5}}
	errs := &fakeErrorStats{stats: recovery.ErrorStats{TotalErrors: 0}}
	recov := &fakeRecoveryStats{stats: recovery.Stats{SuccessRate: 1.0}}
	m := NewMonitor(jobs, errs, recov, map[string]Pinger{"database": &fakePinger{}})

	report := m.CheckHealth(context.Background())

	if report.SystemStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", report.SystemStatus)
	}
	if report.Pipeline.ActiveJobs != 2 || report.Pipeline.Completed != 5 {
		t.Errorf("pipeline stats not carried over: %+v", report.Pipeline)
	}
	if len(report.Components) != 1 || report.Components[0].Status != StatusHealthy {
		t.Errorf("unexpected components: %+v", report.Components)
	}
}

func TestCheckHealth_FailuresDegrade(t *testing.T) {
	jobs := &fakeJobStats{stats: orchestrator.Stats{Completed: 20, Failed: 2}}
	m := NewMonitor(jobs, nil, nil, nil)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded with some failures, got %s", report.SystemStatus)
	}
}

func TestCheckHealth_ReclaimedJobsDegrade(t *testing.T) {
	jobs := &fakeJobStats{stats: orchestrator.Stats{Completed: 20, Reclaimed: 1}}
	m := NewMonitor(jobs, nil, nil, nil)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded after reclamation, got %s", report.SystemStatus)
	}
}

func TestCheckHealth_MostlyFailingIsCritical(t *testing.T) {
	jobs := &fakeJobStats{stats: orchestrator.Stats{Completed: 3, Failed: 8}}
	m := NewMonitor(jobs, nil, nil, nil)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical when failures dominate, got %s", report.SystemStatus)
	}
}

func TestCheckHealth_FewJobsNeverCritical(t *testing.T) {
	// Below the sample floor a bad ratio only degrades
	jobs := &fakeJobStats{stats: orchestrator.Stats{Completed: 1, Failed: 3}}
	m := NewMonitor(jobs, nil, nil, nil)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusDegraded {
		t.Errorf("expected degraded with a small sample, got %s", report.SystemStatus)
	}
}

func TestCheckHealth_PingerFailureIsCritical(t *testing.T) {
	jobs := &fakeJobStats{stats: orchestrator.Stats{Completed: 5}}
	pingers := map[string]Pinger{
		"database": &fakePinger{err: errors.New("connection refused")},
		"redis":    &fakePinger{},
	}
	m := NewMonitor(jobs, nil, nil, pingers)

	report := m.CheckHealth(context.Background())
	if report.SystemStatus != StatusCritical {
		t.Errorf("expected critical with a dead backing service, got %s", report.SystemStatus)
	}

	var dbStatus SystemStatus
	for _, c := range report.Components {
		if c.Name == "database" {
			dbStatus = c.Status
		}
	}
	if dbStatus != StatusCritical {
		t.Errorf("expected database component critical, got %s", dbStatus)
	}
}

func TestCheckHealth_RateLimited(t *testing.T) {
	jobs := &fakeJobStats{stats: orchestrator.Stats{Completed: 5}}
	m := NewMonitor(jobs, nil, nil, nil)

	first := m.CheckHealth(context.Background())
	if first.SystemStatus != StatusHealthy {
		t.Fatalf("expected healthy, got %s", first.SystemStatus)
	}

	// Stats changed, but the cached report is still served
	jobs.stats.Failed = 50
	second := m.CheckHealth(context.Background())
	if second.SystemStatus != StatusHealthy {
		t.Errorf("expected cached healthy report, got %s", second.SystemStatus)
	}
}
