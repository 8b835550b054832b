// Package task owns the task lifecycle: registration, the execution state
// machine, deadline enforcement, cooperative cancellation, and retention
// of terminal records.
package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/surf/pkg/logging"
	"github.com/entrhq/surf/pkg/types"
)

// Status is a task's lifecycle state. Terminal states are final; there are
// no transitions out of them.
type Status string

const (
	StatusRegistered Status = "registered"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusTimedOut   Status = "timed_out"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusTimedOut, StatusFailed:
		return true
	}
	return false
}

// Resource is the external process bound to a running task that must be
// signalled on cancellation. The browser driver satisfies this.
type Resource interface {
	Stop() error
}

// Handle is the runtime record of one task. All mutation goes through its
// mutex so cancellation racing normal completion is a safe no-op rather
// than a state corruption.
type Handle struct {
	ID string

	mu         sync.Mutex
	status     Status
	resource   Resource
	partial    string
	finishedAt time.Time
}

// Status returns the current lifecycle state.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// BindResource attaches the external resource cancellation will signal.
// Binding to an already-cancelled task signals the resource immediately so
// a cancel that raced resource creation still takes effect.
func (h *Handle) BindResource(r Resource) {
	h.mu.Lock()
	cancelled := h.status == StatusCancelled
	if !cancelled {
		h.resource = r
	}
	h.mu.Unlock()

	if cancelled && r != nil {
		_ = r.Stop()
	}
}

// SetPartialResult records a snapshot of the in-flight execution's state,
// retrievable without blocking after cancellation or timeout.
func (h *Handle) SetPartialResult(result string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.partial = result
}

// PartialResult returns the captured snapshot, if any.
func (h *Handle) PartialResult() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.partial
}

// transition moves to a terminal state unless one was already reached.
// Returns false when the handle was already terminal.
func (h *Handle) transition(to Status) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status.Terminal() {
		return false
	}
	h.status = to
	if to.Terminal() {
		h.finishedAt = time.Now()
	}
	return true
}

// Outcome is what RunUnderDeadline hands back to the caller.
type Outcome struct {
	Status Status
	Report *types.ExecutionReport
	Err    error

	// Elapsed is wall-clock execution time, populated on every outcome
	// including timeouts and failures.
	Elapsed time.Duration
}

// CancelResult is the result of a cancellation request. Found=false means
// the task id is unknown or already terminal, which is not an error.
type CancelResult struct {
	Found   bool
	Partial string
}

// Supervisor owns the process-wide task registry. It is an explicit
// dependency threaded through the server rather than ambient global state.
type Supervisor struct {
	mu     sync.Mutex
	tasks  map[string]*Handle
	logger *logging.Logger
}

// NewSupervisor creates an empty supervisor.
func NewSupervisor(logger *logging.Logger) *Supervisor {
	return &Supervisor{
		tasks:  make(map[string]*Handle),
		logger: logger,
	}
}

// Register creates the task record in Running state and stores it in the
// registry. Registering an id that is already present replaces the old
// record; callers are expected to use unique ids.
func (s *Supervisor) Register(taskID string) *Handle {
	h := &Handle{ID: taskID, status: StatusRunning}
	s.mu.Lock()
	s.tasks[taskID] = h
	s.mu.Unlock()
	return h
}

// Get returns the handle for a task id.
func (s *Supervisor) Get(taskID string) (*Handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.tasks[taskID]
	return h, ok
}

// RunUnderDeadline executes fn with a hard wall-clock deadline. On expiry
// the outcome is TimedOut and control returns immediately; the abandoned
// execution keeps running until its own cleanup paths finish, observing
// the cancelled context at its suspension points. The deadline path never
// waits for the execution to actually stop.
func (s *Supervisor) RunUnderDeadline(ctx context.Context, h *Handle, timeout time.Duration, fn func(context.Context) (*types.ExecutionReport, error)) Outcome {
	start := time.Now()
	execCtx, cancel := context.WithTimeout(ctx, timeout)

	type result struct {
		report *types.ExecutionReport
		err    error
	}
	done := make(chan result, 1)

	go func() {
		defer cancel()
		report, err := fn(execCtx)
		done <- result{report, err}
	}()

	select {
	case res := <-done:
		elapsed := time.Since(start)

		// A cancel that landed while fn was finishing wins: the caller
		// asked for cancellation and gets the cancellation shape even if
		// the execution raced to completion.
		if h.Status() == StatusCancelled {
			s.logger.Infof("task %s was cancelled during execution", h.ID)
			return Outcome{Status: StatusCancelled, Elapsed: elapsed}
		}

		if res.err != nil {
			h.transition(StatusFailed)
			s.logger.Errorf("task %s failed after %.2fs: %v", h.ID, elapsed.Seconds(), res.err)
			return Outcome{Status: StatusFailed, Err: res.err, Elapsed: elapsed}
		}

		h.transition(StatusCompleted)
		return Outcome{Status: StatusCompleted, Report: res.report, Elapsed: elapsed}

	case <-execCtx.Done():
		elapsed := time.Since(start)
		if ctx.Err() != nil || execCtx.Err() == context.DeadlineExceeded {
			if h.transition(StatusTimedOut) {
				s.logger.Warnf("task %s timed out after %.2fs", h.ID, elapsed.Seconds())
			}
			return Outcome{Status: StatusTimedOut, Elapsed: elapsed}
		}
		// Context cancelled without deadline: treat as cancellation.
		return Outcome{Status: StatusCancelled, Elapsed: elapsed}
	}
}

// Cancel transitions a running task to Cancelled and signals its bound
// resource to stop. Cancelling an unknown or already-terminal task is not
// an error: it reports Found=false. Calling Cancel twice is safe.
func (s *Supervisor) Cancel(taskID string) CancelResult {
	h, ok := s.Get(taskID)
	if !ok {
		s.logger.Warnf("cancel requested for unknown task %s", taskID)
		return CancelResult{}
	}

	h.mu.Lock()
	if h.status.Terminal() {
		h.mu.Unlock()
		s.logger.Infof("cancel requested for already-terminal task %s", taskID)
		return CancelResult{}
	}
	h.status = StatusCancelled
	h.finishedAt = time.Now()
	resource := h.resource
	partial := h.partial
	h.mu.Unlock()

	if resource != nil {
		if err := resource.Stop(); err != nil {
			s.logger.Warnf("failed to stop resource for task %s: %v", taskID, err)
		} else {
			s.logger.Infof("sent stop signal to resource of task %s", taskID)
		}
	}

	s.logger.Infof("task %s cancelled", taskID)
	return CancelResult{Found: true, Partial: partial}
}

// PartialResult returns the snapshot captured by a task's execution, or
// an error when the task is unknown. It never blocks on the execution.
func (s *Supervisor) PartialResult(taskID string) (string, error) {
	h, ok := s.Get(taskID)
	if !ok {
		return "", fmt.Errorf("task %s not found", taskID)
	}
	return h.PartialResult(), nil
}

// SweepTerminal removes terminal records that finished more than retention
// ago. Running tasks are never removed. Returns the number of records
// dropped.
func (s *Supervisor) SweepTerminal(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, h := range s.tasks {
		h.mu.Lock()
		expired := h.status.Terminal() && h.finishedAt.Before(cutoff)
		h.mu.Unlock()
		if expired {
			delete(s.tasks, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Infof("swept %d terminal task records", removed)
	}
	return removed
}

// RunSweeper periodically sweeps terminal records until ctx is cancelled.
func (s *Supervisor) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepTerminal(retention)
		}
	}
}
