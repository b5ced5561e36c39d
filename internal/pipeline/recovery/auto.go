package recovery

import (
	"context"
	"sync"

	"github.com/vietddude/doctrans/internal/core/domain"
)

// Result combines error handling and recovery for the orchestrator to decide
// whether a failed stage may resume.
type Result struct {
	Response   Response
	Classified *domain.Error
	Attempted  bool
	Recovered  bool
	Attempts   []*Attempt
}

// AutoHandler ties the error handler and the recovery manager together. It
// guarantees a job has at most one recovery in flight at a time.
type AutoHandler struct {
	handler *Handler
	manager *Manager

	mu     sync.Mutex
	active map[string]bool
}

// NewAutoHandler wires a handler and manager into an automatic recovery
// front end.
func NewAutoHandler(handler *Handler, manager *Manager) *AutoHandler {
	return &AutoHandler{
		handler: handler,
		manager: manager,
		active:  make(map[string]bool),
	}
}

// HandleWithRecovery classifies and handles the error, then attempts
// recovery when the error is recoverable and a job context is supplied.
// Concurrent recovery for the same job id is skipped rather than queued.
func (a *AutoHandler) HandleWithRecovery(ctx context.Context, err error, ectx domain.ErrorContext, jc *JobContext) Result {
	ferr := a.handler.Classify(err)
	if ferr.Context.JobID == "" {
		ferr = ferr.WithContext(ectx)
	}
	response := a.handler.HandleClassified(ferr)

	result := Result{Response: response, Classified: ferr}

	if !ferr.Recoverable || jc == nil {
		return result
	}

	if !a.tryLock(jc.JobID) {
		return result
	}
	defer a.unlock(jc.JobID)

	recovered, attempts := a.manager.AttemptRecovery(ctx, ferr, jc)
	result.Attempted = len(attempts) > 0
	result.Recovered = recovered
	result.Attempts = attempts
	return result
}

// RecoveryActive reports whether a recovery is currently in flight for the
// given job.
func (a *AutoHandler) RecoveryActive(jobID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active[jobID]
}

func (a *AutoHandler) tryLock(jobID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active[jobID] {
		return false
	}
	a.active[jobID] = true
	return true
}

func (a *AutoHandler) unlock(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.active, jobID)
}
