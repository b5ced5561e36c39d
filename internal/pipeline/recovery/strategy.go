package recovery

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vietddude/doctrans/internal/core/domain"
)

// Caps applied by the resource and layout strategies.
const (
	maxStrategyTimeout  = 5 * time.Minute
	maxLayoutAdjustment = 0.5
	minQualityThreshold = 0.5
	qualityStep         = 0.1

	// Absorbs float drift from repeated threshold subtractions.
	qualityEpsilon = 1e-9
)

// JobContext is the mutable per-job state recovery strategies are allowed to
// adjust. Fields are explicit rather than a free-form map so strategies
// cannot collide on keys. A job has at most one recovery in flight, but the
// reclamation sweep may read concurrently, so access goes through the mutex.
type JobContext struct {
	mu sync.Mutex

	JobID      string
	Stage      domain.StageName
	RetryCount int
	MaxRetries int

	CurrentService string
	TriedServices  []string

	BatchSize     int
	Timeout       time.Duration
	LowMemoryMode bool

	MaxLayoutAdjustment float64
	AutoFontAdjustment  bool
	SimplifiedLayout    bool

	QualityThreshold float64

	RecoveryCount int
}

// NewJobContext seeds a context with the orchestrator's defaults.
func NewJobContext(jobID string, maxRetries int, qualityThreshold float64, timeout time.Duration) *JobContext {
	return &JobContext{
		JobID:               jobID,
		MaxRetries:          maxRetries,
		BatchSize:           10,
		Timeout:             timeout,
		MaxLayoutAdjustment: 0.1,
		QualityThreshold:    qualityThreshold,
	}
}

// Update runs fn while holding the context lock.
func (c *JobContext) Update(fn func(*JobContext)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// View runs fn with the lock held for consistent reads.
func (c *JobContext) View(fn func(*JobContext)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

// Strategy is one pluggable repair action. Strategies are kept in an ordered
// slice and tried in ascending Priority order; Execute returns a
// human-readable result message, or an error when the repair could not be
// applied.
type Strategy interface {
	Name() string
	CanHandle(ferr *domain.Error) bool
	Execute(ctx context.Context, ferr *domain.Error, jc *JobContext) (string, error)
	Priority() int
}

// RetryStrategy delays with exponential backoff and signals the stage to run
// again. It owns the per-job retry counter in the context.
type RetryStrategy struct {
	MaxRetries    int
	BackoffFactor float64
	BaseDelay     time.Duration
}

func (s *RetryStrategy) Name() string { return "retry" }

func (s *RetryStrategy) Priority() int { return 1 }

func (s *RetryStrategy) CanHandle(ferr *domain.Error) bool {
	if !ferr.Recoverable {
		return false
	}
	switch ferr.Code {
	case domain.CodeServiceFailed, domain.CodeTimeout, domain.CodeServiceGeneric:
		return true
	default:
		return false
	}
}

func (s *RetryStrategy) Execute(ctx context.Context, ferr *domain.Error, jc *JobContext) (string, error) {
	var attempt int
	jc.View(func(c *JobContext) { attempt = c.RetryCount })

	if attempt >= s.MaxRetries {
		return "", fmt.Errorf("maximum retries (%d) exceeded", s.MaxRetries)
	}

	base := s.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	delay := time.Duration(math.Pow(s.BackoffFactor, float64(attempt)) * float64(base))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	jc.Update(func(c *JobContext) { c.RetryCount++ })
	return fmt.Sprintf("retried after %s delay (attempt %d)", delay, attempt+1), nil
}

// FallbackServiceStrategy rotates the current translation service to the
// next configured candidate that has not been tried yet.
type FallbackServiceStrategy struct {
	Services []string
}

func (s *FallbackServiceStrategy) Name() string { return "fallback_service" }

func (s *FallbackServiceStrategy) Priority() int { return 2 }

func (s *FallbackServiceStrategy) CanHandle(ferr *domain.Error) bool {
	return ferr.Code == domain.CodeServiceFailed || ferr.Code == domain.CodeServiceGeneric
}

func (s *FallbackServiceStrategy) Execute(ctx context.Context, ferr *domain.Error, jc *JobContext) (string, error) {
	var next string
	jc.Update(func(c *JobContext) {
		for _, candidate := range s.Services {
			if candidate == c.CurrentService {
				continue
			}
			if containsService(c.TriedServices, candidate) {
				continue
			}
			next = candidate
			break
		}
		if next != "" {
			if c.CurrentService != "" {
				c.TriedServices = append(c.TriedServices, c.CurrentService)
			}
			c.CurrentService = next
		}
	})

	if next == "" {
		return "", fmt.Errorf("no more fallback services available")
	}
	return fmt.Sprintf("switched to fallback service: %s", next), nil
}

// ResourceOptimizationStrategy trades throughput for headroom: halves the
// batch size under memory pressure, doubles the timeout (capped) after a
// timeout, and turns on low-memory mode.
type ResourceOptimizationStrategy struct{}

func (s *ResourceOptimizationStrategy) Name() string { return "resource_optimization" }

func (s *ResourceOptimizationStrategy) Priority() int { return 3 }

func (s *ResourceOptimizationStrategy) CanHandle(ferr *domain.Error) bool {
	return ferr.Code == domain.CodeMemoryExceeded || ferr.Code == domain.CodeTimeout
}

func (s *ResourceOptimizationStrategy) Execute(ctx context.Context, ferr *domain.Error, jc *JobContext) (string, error) {
	var applied []string
	jc.Update(func(c *JobContext) {
		if ferr.Code == domain.CodeMemoryExceeded {
			c.LowMemoryMode = true
			if c.BatchSize > 1 {
				c.BatchSize /= 2
			}
			applied = append(applied, fmt.Sprintf("enabled low-memory mode, batch size %d", c.BatchSize))
		}
		if ferr.Code == domain.CodeTimeout {
			doubled := c.Timeout * 2
			if doubled > maxStrategyTimeout {
				doubled = maxStrategyTimeout
			}
			if doubled > c.Timeout {
				c.Timeout = doubled
				applied = append(applied, fmt.Sprintf("increased timeout to %s", c.Timeout))
			}
		}
	})

	if len(applied) == 0 {
		return "", fmt.Errorf("no applicable optimizations found")
	}
	return "applied optimizations: " + joinMessages(applied), nil
}

// LayoutAdjustmentStrategy relaxes fitting constraints: a larger allowed
// layout adjustment with automatic font scaling for fitting errors, or
// simplified layout mode for reconstruction errors.
type LayoutAdjustmentStrategy struct {
	AdjustmentCap float64
}

func (s *LayoutAdjustmentStrategy) Name() string { return "layout_adjustment" }

func (s *LayoutAdjustmentStrategy) Priority() int { return 4 }

func (s *LayoutAdjustmentStrategy) CanHandle(ferr *domain.Error) bool {
	return ferr.Code == domain.CodeTextFitting || ferr.Code == domain.CodeReconstruction
}

func (s *LayoutAdjustmentStrategy) Execute(ctx context.Context, ferr *domain.Error, jc *JobContext) (string, error) {
	limit := s.AdjustmentCap
	if limit <= 0 {
		limit = maxLayoutAdjustment
	}

	var applied []string
	jc.Update(func(c *JobContext) {
		if ferr.Code == domain.CodeTextFitting {
			relaxed := math.Min(c.MaxLayoutAdjustment*1.5, limit)
			if relaxed > c.MaxLayoutAdjustment {
				c.MaxLayoutAdjustment = relaxed
				applied = append(applied, fmt.Sprintf("increased layout adjustment to %.2f", relaxed))
			}
			if !c.AutoFontAdjustment {
				c.AutoFontAdjustment = true
				applied = append(applied, "enabled automatic font size adjustment")
			}
		}
		if ferr.Code == domain.CodeReconstruction && !c.SimplifiedLayout {
			c.SimplifiedLayout = true
			applied = append(applied, "enabled simplified layout processing")
		}
	})

	if len(applied) == 0 {
		return "", fmt.Errorf("no applicable layout adjustments found")
	}
	return "applied adjustments: " + joinMessages(applied), nil
}

// QualityThresholdStrategy lowers the required quality threshold one step at
// a time, refusing once the floor is reached.
type QualityThresholdStrategy struct {
	Floor float64
	Step  float64
}

func (s *QualityThresholdStrategy) Name() string { return "quality_threshold" }

func (s *QualityThresholdStrategy) Priority() int { return 5 }

func (s *QualityThresholdStrategy) CanHandle(ferr *domain.Error) bool {
	return ferr.Code == domain.CodeQualityThreshold
}

func (s *QualityThresholdStrategy) Execute(ctx context.Context, ferr *domain.Error, jc *JobContext) (string, error) {
	floor := s.Floor
	if floor <= 0 {
		floor = minQualityThreshold
	}
	step := s.Step
	if step <= 0 {
		step = qualityStep
	}

	var lowered float64
	atFloor := false
	jc.Update(func(c *JobContext) {
		if c.QualityThreshold-floor <= qualityEpsilon {
			atFloor = true
			return
		}
		next := c.QualityThreshold - step
		if next-floor <= qualityEpsilon {
			next = floor
		}
		c.QualityThreshold = next
		lowered = next
	})

	if atFloor {
		return "", fmt.Errorf("quality threshold already at minimum (%.1f)", floor)
	}
	return fmt.Sprintf("lowered quality threshold to %.1f", lowered), nil
}

// DefaultStrategies builds the shipped strategy set in priority order.
func DefaultStrategies(cfg StrategyConfig) []Strategy {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.BackoffFactor == 0 {
		cfg.BackoffFactor = 2.0
	}
	return []Strategy{
		&RetryStrategy{MaxRetries: cfg.MaxRetries, BackoffFactor: cfg.BackoffFactor},
		&FallbackServiceStrategy{Services: cfg.FallbackServices},
		&ResourceOptimizationStrategy{},
		&LayoutAdjustmentStrategy{AdjustmentCap: cfg.LayoutAdjustmentCap},
		&QualityThresholdStrategy{Floor: cfg.QualityFloor, Step: cfg.QualityStep},
	}
}

// StrategyConfig carries the per-strategy tunables.
type StrategyConfig struct {
	MaxRetries          int
	BackoffFactor       float64
	FallbackServices    []string
	LayoutAdjustmentCap float64
	QualityFloor        float64
	QualityStep         float64
}

func containsService(services []string, name string) bool {
	for _, s := range services {
		if s == name {
			return true
		}
	}
	return false
}

func joinMessages(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
