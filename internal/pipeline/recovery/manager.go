package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vietddude/doctrans/internal/core/domain"
	"github.com/vietddude/doctrans/internal/pipeline/metrics"
)

// AttemptStatus tracks a recovery attempt through its lifecycle.
type AttemptStatus string

const (
	AttemptPending    AttemptStatus = "pending"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSuccess    AttemptStatus = "success"
	AttemptFailed     AttemptStatus = "failed"
	AttemptSkipped    AttemptStatus = "skipped"
)

// Attempt is the append-only record of one strategy execution.
type Attempt struct {
	ID        string
	Strategy  string
	Priority  int
	Status    AttemptStatus
	StartTime time.Time
	EndTime   time.Time
	Result    string
	ErrorMsg  string
}

// Duration returns how long the attempt ran.
func (a *Attempt) Duration() time.Duration {
	if a.EndTime.IsZero() {
		return 0
	}
	return a.EndTime.Sub(a.StartTime)
}

// ManagerConfig bounds recovery work per job and per strategy execution.
type ManagerConfig struct {
	MaxAttemptsPerJob int
	StrategyTimeout   time.Duration
	HistorySize       int
}

// Manager tries applicable strategies in priority order for a given error,
// bounded by attempt and time limits, and records history for statistics.
type Manager struct {
	cfg        ManagerConfig
	strategies []Strategy

	mu      sync.Mutex
	history []*Attempt
}

// NewManager creates a manager over the given strategies, sorted by
// ascending priority.
func NewManager(cfg ManagerConfig, strategies []Strategy) *Manager {
	if cfg.MaxAttemptsPerJob == 0 {
		cfg.MaxAttemptsPerJob = 5
	}
	if cfg.StrategyTimeout == 0 {
		cfg.StrategyTimeout = 5 * time.Minute
	}
	if cfg.HistorySize == 0 {
		cfg.HistorySize = 1000
	}

	ordered := make([]Strategy, len(strategies))
	copy(ordered, strategies)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	return &Manager{cfg: cfg, strategies: ordered}
}

// AddStrategy registers a custom strategy, keeping priority order.
func (m *Manager) AddStrategy(s Strategy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies = append(m.strategies, s)
	sort.SliceStable(m.strategies, func(i, j int) bool {
		return m.strategies[i].Priority() < m.strategies[j].Priority()
	})
}

// AttemptRecovery filters strategies to those that can handle the error,
// executes them in ascending priority order and stops at the first success.
// Every execution is recorded. Returns whether recovery succeeded along with
// the attempts made during this call.
func (m *Manager) AttemptRecovery(ctx context.Context, ferr *domain.Error, jc *JobContext) (bool, []*Attempt) {
	var attempts []*Attempt

	var recoveryCount int
	jc.View(func(c *JobContext) { recoveryCount = c.RecoveryCount })
	if recoveryCount >= m.cfg.MaxAttemptsPerJob {
		slog.Warn("Recovery attempt cap reached",
			slog.String("job_id", jc.JobID),
			slog.Int("recovery_count", recoveryCount),
		)
		return false, attempts
	}

	for _, strategy := range m.strategies {
		if !strategy.CanHandle(ferr) {
			continue
		}
		if len(attempts) >= m.cfg.MaxAttemptsPerJob {
			break
		}

		attempt := &Attempt{
			ID:        uuid.New().String(),
			Strategy:  strategy.Name(),
			Priority:  strategy.Priority(),
			Status:    AttemptInProgress,
			StartTime: time.Now(),
		}

		result, err := m.executeWithTimeout(ctx, strategy, ferr, jc)
		attempt.EndTime = time.Now()

		if err != nil {
			attempt.Status = AttemptFailed
			attempt.ErrorMsg = err.Error()
			slog.Debug("Recovery strategy failed",
				slog.String("job_id", jc.JobID),
				slog.String("strategy", strategy.Name()),
				slog.String("error", err.Error()),
			)
		} else {
			attempt.Status = AttemptSuccess
			attempt.Result = result
		}

		metrics.RecoveryAttempts.WithLabelValues(strategy.Name(), string(attempt.Status)).Inc()
		attempts = append(attempts, attempt)
		m.record(attempt)

		if attempt.Status == AttemptSuccess {
			jc.Update(func(c *JobContext) { c.RecoveryCount++ })
			slog.Info("Recovery succeeded",
				slog.String("job_id", jc.JobID),
				slog.String("strategy", strategy.Name()),
				slog.String("result", result),
			)
			return true, attempts
		}
	}

	return false, attempts
}

// executeWithTimeout runs a strategy under the configured deadline. A
// strategy that overruns is recorded as failed; its goroutine finishes in
// the background and its late result is discarded.
func (m *Manager) executeWithTimeout(ctx context.Context, s Strategy, ferr *domain.Error, jc *JobContext) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, m.cfg.StrategyTimeout)
	defer cancel()

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("strategy panicked: %v", r)}
			}
		}()
		result, err := s.Execute(execCtx, ferr, jc)
		done <- outcome{result: result, err: err}
	}()

	select {
	case out := <-done:
		return out.result, out.err
	case <-execCtx.Done():
		return "", fmt.Errorf("recovery timed out after %s", m.cfg.StrategyTimeout)
	}
}

func (m *Manager) record(a *Attempt) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, a)
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[len(m.history)-m.cfg.HistorySize:]
	}
}

// StrategyStats aggregates attempts per strategy.
type StrategyStats struct {
	Total       int
	Successful  int
	Failed      int
	AvgDuration time.Duration
}

// Stats is the manager's aggregate view used by GetStatistics.
type Stats struct {
	TotalAttempts      int
	SuccessfulAttempts int
	SuccessRate        float64
	ByStrategy         map[string]StrategyStats
	Recent             []*Attempt
}

// Statistics computes aggregates over the bounded attempt history.
func (m *Manager) Statistics() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Stats{ByStrategy: make(map[string]StrategyStats)}
	var totalDur = make(map[string]time.Duration)

	for _, a := range m.history {
		stats.TotalAttempts++
		s := stats.ByStrategy[a.Strategy]
		s.Total++
		if a.Status == AttemptSuccess {
			stats.SuccessfulAttempts++
			s.Successful++
		} else {
			s.Failed++
		}
		totalDur[a.Strategy] += a.Duration()
		stats.ByStrategy[a.Strategy] = s
	}

	for name, s := range stats.ByStrategy {
		if s.Total > 0 {
			s.AvgDuration = totalDur[name] / time.Duration(s.Total)
			stats.ByStrategy[name] = s
		}
	}

	if stats.TotalAttempts > 0 {
		stats.SuccessRate = float64(stats.SuccessfulAttempts) / float64(stats.TotalAttempts)
	}

	recent := 10
	if len(m.history) < recent {
		recent = len(m.history)
	}
	stats.Recent = append(stats.Recent, m.history[len(m.history)-recent:]...)

	return stats
}
