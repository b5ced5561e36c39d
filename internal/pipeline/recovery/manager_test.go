package recovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/doctrans/internal/core/domain"
)

// ============================================================
// Mocks
// ============================================================

type mockStrategy struct {
	mu       sync.Mutex
	name     string
	priority int
	handles  bool
	result   string
	err      error
	block    chan struct{}
	calls    int
}

func (m *mockStrategy) Name() string  { return m.name }
func (m *mockStrategy) Priority() int { return m.priority }

func (m *mockStrategy) CanHandle(ferr *domain.Error) bool { return m.handles }

func (m *mockStrategy) Execute(ctx context.Context, ferr *domain.Error, jc *JobContext) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return m.result, m.err
}

func (m *mockStrategy) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ============================================================
// Manager
// ============================================================

func TestManager_FirstSuccessHalts(t *testing.T) {
	first := &mockStrategy{name: "first", priority: 1, handles: true, result: "fixed"}
	second := &mockStrategy{name: "second", priority: 2, handles: true, result: "also fixed"}
	m := NewManager(ManagerConfig{}, []Strategy{second, first})
	jc := NewJobContext("job-1", 3, 0.8, time.Minute)

	recovered, attempts := m.AttemptRecovery(context.Background(), domain.NewServiceFailedError("svc", nil), jc)

	if !recovered {
		t.Fatal("expected recovery to succeed")
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if attempts[0].Strategy != "first" {
		t.Errorf("expected lowest priority strategy first, got %s", attempts[0].Strategy)
	}
	if second.callCount() != 0 {
		t.Error("later strategies must not run after a success")
	}
}

func TestManager_FallsThroughFailures(t *testing.T) {
	failing := &mockStrategy{name: "failing", priority: 1, handles: true, err: errors.New("nope")}
	working := &mockStrategy{name: "working", priority: 2, handles: true, result: "fixed"}
	skipped := &mockStrategy{name: "skipped", priority: 3, handles: false}
	m := NewManager(ManagerConfig{}, []Strategy{failing, working, skipped})
	jc := NewJobContext("job-1", 3, 0.8, time.Minute)

	recovered, attempts := m.AttemptRecovery(context.Background(), domain.NewServiceFailedError("svc", nil), jc)

	if !recovered {
		t.Fatal("expected recovery to succeed via second strategy")
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0].Status != AttemptFailed || attempts[1].Status != AttemptSuccess {
		t.Errorf("unexpected attempt statuses: %s, %s", attempts[0].Status, attempts[1].Status)
	}
	if skipped.callCount() != 0 {
		t.Error("non-applicable strategy must not run")
	}
}

func TestManager_PerJobAttemptCap(t *testing.T) {
	s := &mockStrategy{name: "always", priority: 1, handles: true, result: "fixed"}
	m := NewManager(ManagerConfig{MaxAttemptsPerJob: 2}, []Strategy{s})
	jc := NewJobContext("job-1", 3, 0.8, time.Minute)
	ferr := domain.NewServiceFailedError("svc", nil)

	for i := 0; i < 2; i++ {
		if recovered, _ := m.AttemptRecovery(context.Background(), ferr, jc); !recovered {
			t.Fatalf("recovery %d failed unexpectedly", i+1)
		}
	}

	recovered, attempts := m.AttemptRecovery(context.Background(), ferr, jc)
	if recovered || len(attempts) != 0 {
		t.Error("expected recovery refused once the per-job cap is reached")
	}
}

func TestManager_StrategyTimeout(t *testing.T) {
	slow := &mockStrategy{name: "slow", priority: 1, handles: true, block: make(chan struct{})}
	m := NewManager(ManagerConfig{StrategyTimeout: 20 * time.Millisecond}, []Strategy{slow})
	jc := NewJobContext("job-1", 3, 0.8, time.Minute)

	recovered, attempts := m.AttemptRecovery(context.Background(), domain.NewServiceFailedError("svc", nil), jc)
	close(slow.block)

	if recovered {
		t.Error("expected timed-out strategy to count as failed")
	}
	if len(attempts) != 1 || attempts[0].Status != AttemptFailed {
		t.Fatalf("expected 1 failed attempt, got %+v", attempts)
	}
}

func TestManager_Statistics(t *testing.T) {
	failing := &mockStrategy{name: "failing", priority: 1, handles: true, err: errors.New("nope")}
	working := &mockStrategy{name: "working", priority: 2, handles: true, result: "fixed"}
	m := NewManager(ManagerConfig{}, []Strategy{failing, working})
	jc := NewJobContext("job-1", 3, 0.8, time.Minute)

	m.AttemptRecovery(context.Background(), domain.NewServiceFailedError("svc", nil), jc)

	stats := m.Statistics()
	if stats.TotalAttempts != 2 {
		t.Errorf("expected 2 total attempts, got %d", stats.TotalAttempts)
	}
	if stats.SuccessfulAttempts != 1 {
		t.Errorf("expected 1 successful attempt, got %d", stats.SuccessfulAttempts)
	}
	if stats.SuccessRate != 0.5 {
		t.Errorf("expected success rate 0.5, got %.2f", stats.SuccessRate)
	}
	if stats.ByStrategy["failing"].Failed != 1 || stats.ByStrategy["working"].Successful != 1 {
		t.Error("per-strategy breakdown incorrect")
	}
	if len(stats.Recent) != 2 {
		t.Errorf("expected 2 recent attempts, got %d", len(stats.Recent))
	}
}

func TestManager_AddStrategyKeepsOrder(t *testing.T) {
	later := &mockStrategy{name: "later", priority: 5, handles: true, result: "fixed"}
	m := NewManager(ManagerConfig{}, []Strategy{later})
	earlier := &mockStrategy{name: "earlier", priority: 1, handles: true, result: "fixed first"}
	m.AddStrategy(earlier)

	jc := NewJobContext("job-1", 3, 0.8, time.Minute)
	_, attempts := m.AttemptRecovery(context.Background(), domain.NewServiceFailedError("svc", nil), jc)

	if len(attempts) != 1 || attempts[0].Strategy != "earlier" {
		t.Errorf("expected the lower-priority number strategy to run first, got %+v", attempts)
	}
}
