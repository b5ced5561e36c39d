package recovery

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vietddude/doctrans/internal/core/domain"
	"github.com/vietddude/doctrans/internal/pipeline/metrics"
)

// ResponseStatus tells the caller what to do with a handled error.
type ResponseStatus string

const (
	StatusError ResponseStatus = "error"
	StatusRetry ResponseStatus = "retry"
)

// Action describes a possible repair for an error. Lower priority is tried
// first; automatic actions may be executed by the recovery manager without
// user involvement.
type Action struct {
	Type        string
	Description string
	Parameters  map[string]string
	Automatic   bool
	Priority    int
}

// Response is the normalized result of handling an error.
type Response struct {
	Status      ResponseStatus
	Message     string
	Code        string
	Severity    domain.ErrorSeverity
	Suggestions []string
	Actions     []Action
	Timestamp   time.Time
}

const errorHistoryCap = 1000

// Handler converts raw failures into normalized responses and keeps error
// statistics. Safe for concurrent use.
type Handler struct {
	mu      sync.Mutex
	total   int
	counts  map[string]int
	history []*domain.Error

	codeActions     map[string][]Action
	categoryActions map[domain.ErrorCategory][]Action
}

// NewHandler creates a handler with the default recovery-action tables.
func NewHandler() *Handler {
	h := &Handler{
		counts: make(map[string]int),
	}
	h.setupDefaultActions()
	return h
}

func (h *Handler) setupDefaultActions() {
	h.codeActions = map[string][]Action{
		domain.CodeInvalidFormat: {
			{Type: "format_conversion", Description: "Attempt automatic format detection", Automatic: true, Priority: 1},
			{Type: "user_guidance", Description: "Provide format conversion guidance", Priority: 2},
		},
		domain.CodeFileSizeExceeded: {
			{Type: "compression", Description: "Attempt file compression", Automatic: true, Priority: 1},
			{Type: "chunking", Description: "Split document into smaller sections", Priority: 2},
		},
		domain.CodeServiceFailed: {
			{Type: "retry", Description: "Retry with exponential backoff", Parameters: map[string]string{"max_retries": "3", "backoff_factor": "2"}, Automatic: true, Priority: 1},
			{Type: "fallback_service", Description: "Switch to backup translation service", Automatic: true, Priority: 2},
		},
		domain.CodeQualityThreshold: {
			{Type: "quality_adjustment", Description: "Lower the quality threshold", Parameters: map[string]string{"adjustment": "-0.1"}, Priority: 1},
			{Type: "manual_review", Description: "Flag the translation for manual review", Priority: 2},
		},
		domain.CodeTextFitting: {
			{Type: "font_adjustment", Description: "Reduce font size automatically", Automatic: true, Priority: 1},
			{Type: "layout_expansion", Description: "Allow larger layout adjustments", Parameters: map[string]string{"max_adjustment": "0.2"}, Priority: 2},
		},
		domain.CodeMemoryExceeded: {
			{Type: "memory_cleanup", Description: "Clear temporary data and caches", Automatic: true, Priority: 1},
			{Type: "processing_mode", Description: "Switch to low-memory processing mode", Automatic: true, Priority: 2},
		},
	}

	h.categoryActions = map[domain.ErrorCategory][]Action{
		domain.CategoryFileProcessing: {
			{Type: "file_validation", Description: "Re-validate file format and integrity", Priority: 3},
		},
		domain.CategoryTranslation: {
			{Type: "translation_retry", Description: "Retry translation with adjusted parameters", Priority: 3},
		},
		domain.CategoryLayoutProcessing: {
			{Type: "layout_simplification", Description: "Simplify layout processing", Priority: 3},
		},
		domain.CategoryResource: {
			{Type: "resource_optimization", Description: "Optimize resource usage", Priority: 3},
		},
	}
}

// Classify normalizes any error into a *domain.Error. Already-typed errors
// pass through; everything else becomes an unknown service error preserving
// the original as cause.
func (h *Handler) Classify(err error) *domain.Error {
	var ferr *domain.Error
	if errors.As(err, &ferr) {
		return ferr
	}
	return domain.NewUnknownError(err)
}

// Handle classifies the error, logs it by severity, updates statistics and
// assembles the merged, priority-sorted recovery-action list.
func (h *Handler) Handle(err error, ctx domain.ErrorContext) Response {
	ferr := h.Classify(err)
	if ferr.Context.JobID == "" {
		ferr = ferr.WithContext(ctx)
	}
	return h.HandleClassified(ferr)
}

// HandleClassified handles an already-classified error. The instance passed
// in is the one recorded in the handler's history.
func (h *Handler) HandleClassified(ferr *domain.Error) Response {
	h.logError(ferr)
	h.recordError(ferr)
	metrics.ErrorsTotal.WithLabelValues(ferr.Code, string(ferr.Category)).Inc()

	status := StatusError
	if ferr.Recoverable {
		status = StatusRetry
	}

	return Response{
		Status:      status,
		Message:     ferr.Message,
		Code:        ferr.Code,
		Severity:    ferr.Severity,
		Suggestions: append([]string(nil), ferr.Suggestions...),
		Actions:     h.actionsFor(ferr),
		Timestamp:   time.Now(),
	}
}

func (h *Handler) actionsFor(ferr *domain.Error) []Action {
	var actions []Action
	actions = append(actions, h.codeActions[ferr.Code]...)
	actions = append(actions, h.categoryActions[ferr.Category]...)
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Priority < actions[j].Priority
	})
	return actions
}

func (h *Handler) logError(ferr *domain.Error) {
	attrs := []any{
		slog.String("code", ferr.Code),
		slog.String("category", string(ferr.Category)),
		slog.Bool("recoverable", ferr.Recoverable),
	}
	if ferr.Context.JobID != "" {
		attrs = append(attrs, slog.String("job_id", ferr.Context.JobID))
	}
	if ferr.Context.Stage != "" {
		attrs = append(attrs, slog.String("stage", string(ferr.Context.Stage)))
	}
	if ferr.Cause != nil {
		attrs = append(attrs, slog.String("cause", ferr.Cause.Error()))
	}

	switch ferr.Severity {
	case domain.SeverityCritical, domain.SeverityHigh:
		slog.Error(ferr.Message, attrs...)
	case domain.SeverityMedium:
		slog.Warn(ferr.Message, attrs...)
	default:
		slog.Info(ferr.Message, attrs...)
	}
}

func (h *Handler) recordError(ferr *domain.Error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.total++
	h.counts[ferr.Code]++
	h.history = append(h.history, ferr)
	if len(h.history) > errorHistoryCap {
		h.history = h.history[len(h.history)-errorHistoryCap:]
	}
}

// ErrorStats is the handler's aggregate view.
type ErrorStats struct {
	TotalErrors  int
	CountsByCode map[string]int
	Recent       []*domain.Error
}

// Statistics returns totals, per-code counts and the most recent errors.
func (h *Handler) Statistics() ErrorStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	counts := make(map[string]int, len(h.counts))
	for code, n := range h.counts {
		counts[code] = n
	}

	recent := 10
	if len(h.history) < recent {
		recent = len(h.history)
	}

	stats := ErrorStats{
		TotalErrors:  h.total,
		CountsByCode: counts,
	}
	stats.Recent = append(stats.Recent, h.history[len(h.history)-recent:]...)
	return stats
}
