package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/doctrans/internal/pipeline/orchestrator"
	"github.com/vietddude/doctrans/internal/pipeline/recovery"
)

// JobStatsProvider exposes orchestrator aggregates.
type JobStatsProvider interface {
	Statistics() orchestrator.Stats
}

// ErrorStatsProvider exposes error-handler aggregates.
type ErrorStatsProvider interface {
	Statistics() recovery.ErrorStats
}

// RecoveryStatsProvider exposes recovery-manager aggregates.
type RecoveryStatsProvider interface {
	Statistics() recovery.Stats
}

// Pinger checks connectivity of a backing service.
type Pinger interface {
	Health(ctx context.Context) error
}

// Monitor aggregates health status from the pipeline and its backing
// services.
type Monitor struct {
	jobs      JobStatsProvider
	errors    ErrorStatsProvider
	recov     RecoveryStatsProvider
	pingers   map[string]Pinger
	lastCheck time.Time
	lastRep   HealthReport
	mu        sync.Mutex
}

// NewMonitor creates a new health monitor. Pingers are optional backing
// services (database, redis) keyed by display name.
func NewMonitor(
	jobs JobStatsProvider,
	errors ErrorStatsProvider,
	recov RecoveryStatsProvider,
	pingers map[string]Pinger,
) *Monitor {
	return &Monitor{
		jobs:    jobs,
		errors:  errors,
		recov:   recov,
		pingers: pingers,
	}
}

// CheckHealth builds the current health report. Checks are rate limited to
// avoid hammering backing services.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < 10*time.Second && m.lastRep.SystemStatus != "" {
		return m.lastRep
	}

	report := HealthReport{SystemStatus: StatusHealthy}

	jobStats := m.jobs.Statistics()
	pipeline := PipelineHealth{
		Status:     StatusHealthy,
		ActiveJobs: jobStats.ActiveJobs,
		Completed:  jobStats.Completed,
		Failed:     jobStats.Failed,
		Cancelled:  jobStats.Cancelled,
		Reclaimed:  jobStats.Reclaimed,
	}
	if m.errors != nil {
		pipeline.TotalErrors = m.errors.Statistics().TotalErrors
	}
	if m.recov != nil {
		pipeline.RecoverySuccessRate = m.recov.Statistics().SuccessRate
	}

	// Evaluate pipeline status
	finished := jobStats.Completed + jobStats.Failed
	if finished >= 10 && jobStats.Failed > jobStats.Completed {
		pipeline.Status = StatusCritical
	} else if jobStats.Failed > 0 || jobStats.Reclaimed > 0 {
		pipeline.Status = StatusDegraded
	}
	report.Pipeline = pipeline

	for name, pinger := range m.pingers {
		component := ComponentHealth{Name: name, Status: StatusHealthy}
		if err := pinger.Health(ctx); err != nil {
			component.Status = StatusCritical
			component.Detail = err.Error()
		}
		report.Components = append(report.Components, component)
	}

	// Aggregate status (worst case wins)
	report.SystemStatus = pipeline.Status
	for _, c := range report.Components {
		if worse(c.Status, report.SystemStatus) {
			report.SystemStatus = c.Status
		}
	}

	m.lastCheck = time.Now()
	m.lastRep = report
	return report
}

func worse(a, b SystemStatus) bool {
	rank := map[SystemStatus]int{StatusHealthy: 0, StatusDegraded: 1, StatusCritical: 2}
	return rank[a] > rank[b]
}
