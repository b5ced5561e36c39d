// Package health provides system health monitoring and status reporting.
package health

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// PipelineHealth contains health metrics for the job pipeline.
type PipelineHealth struct {
	Status              SystemStatus `json:"status"`
	ActiveJobs          int          `json:"active_jobs"`
	Completed           int          `json:"completed"`
	Failed              int          `json:"failed"`
	Cancelled           int          `json:"cancelled"`
	Reclaimed           int          `json:"reclaimed"`
	TotalErrors         int          `json:"total_errors"`
	RecoverySuccessRate float64      `json:"recovery_success_rate"`
}

// ComponentHealth reports the state of one backing service.
type ComponentHealth struct {
	Name   string       `json:"name"`
	Status SystemStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus      `json:"system_status"`
	Pipeline     PipelineHealth    `json:"pipeline"`
	Components   []ComponentHealth `json:"components,omitempty"`
}
