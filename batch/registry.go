/*
registry.go - Batch run lifecycle and lookup

PURPOSE:
  Owns every Run the server has started: creation, status transitions,
  cancellation and cleanup. Handlers talk to the Registry; the worker in
  driver.go talks to its own Run through the small transition methods here.

STATE MACHINE:
  pending -> running -> done
                     -> error      (worker panic)
                     -> cancelled  (DELETE /api/batch/runs/{id} or shutdown)
  Terminal states are final. Only done exposes result rows.

SEE ALSO:
  - driver.go: The worker that moves a Run through its states
  - api: HTTP surface over the registry
*/
package batch

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/comp-engine/engine"
)

// ErrWorkerPanic is the terminal error of a run whose worker panicked.
// Like cancellation, it commits no partial results.
var ErrWorkerPanic = errors.New("batch worker panicked")

// Status is a run's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError || s == StatusCancelled
}

// =============================================================================
// RUN
// =============================================================================

// Run is one batch execution. All exported reads go through snapshot
// methods; the worker mutates state through the transition methods below.
type Run struct {
	ID        string
	CreatedAt time.Time

	mu       sync.Mutex
	status   Status
	progress Progress
	results  []RowResult
	err      error
	finished time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Status returns the run's current lifecycle state.
func (r *Run) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Progress returns the latest progress counter.
func (r *Run) Progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress
}

// Err returns the terminal error, nil unless status is error or cancelled.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// FinishedAt returns when the run reached a terminal state, zero otherwise.
func (r *Run) FinishedAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// Results returns the result rows of a completed run. Non-done runs,
// including cancelled and failed ones, have none: ErrRunActive while in
// flight, ErrRunCancelled after a cancel.
func (r *Run) Results() ([]RowResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case StatusDone:
		return r.results, nil
	case StatusCancelled:
		return nil, engine.ErrRunCancelled
	case StatusError:
		return nil, r.err
	default:
		return nil, engine.ErrRunActive
	}
}

// --- worker-side transitions -------------------------------------------------

func (r *Run) begin(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = StatusRunning
	r.progress = Progress{Processed: 0, Total: total}
}

// report updates progress. Processed never moves backward even if a caller
// misbehaves; the monotonic guarantee lives here, not in the worker loop.
func (r *Run) report(processed, total int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if processed < r.progress.Processed {
		processed = r.progress.Processed
	}
	r.progress = Progress{
		Processed: processed,
		Total:     total,
		ElapsedMs: elapsed.Milliseconds(),
	}
}

func (r *Run) complete(results []RowResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.status = StatusDone
	r.results = results
	r.finished = time.Now()
	close(r.done)
}

func (r *Run) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.status = StatusError
	r.err = err
	r.finished = time.Now()
	close(r.done)
}

func (r *Run) cancelTerminal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.status = StatusCancelled
	r.err = engine.ErrRunCancelled
	r.finished = time.Now()
	close(r.done)
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry starts and tracks batch runs.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*Run
	wg   sync.WaitGroup
}

// NewRegistry returns an empty run registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*Run)}
}

// Start snapshots the job and launches its worker. The returned Run is
// immediately visible through Get/List.
func (reg *Registry) Start(ctx context.Context, job Job) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		status:    StatusPending,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	reg.mu.Lock()
	reg.runs[run.ID] = run
	reg.mu.Unlock()

	snap := job.snapshot()
	reg.wg.Add(1)
	go func() {
		defer reg.wg.Done()
		defer cancel()
		execute(runCtx, run, snap)
	}()

	return run
}

// Get returns a run by id.
func (reg *Registry) Get(id string) (*Run, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	run, ok := reg.runs[id]
	if !ok {
		return nil, engine.ErrRunNotFound
	}
	return run, nil
}

// List returns all runs, newest first.
func (reg *Registry) List() []*Run {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*Run, 0, len(reg.runs))
	for _, r := range reg.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel requests cancellation of a run. Cancelling an already-terminal run
// is a no-op; it keeps its existing terminal state.
func (reg *Registry) Cancel(id string) error {
	run, err := reg.Get(id)
	if err != nil {
		return err
	}
	run.cancel()
	return nil
}

// Shutdown cancels every active run and waits for the workers to exit.
func (reg *Registry) Shutdown() {
	reg.mu.Lock()
	for _, r := range reg.runs {
		r.cancel()
	}
	reg.mu.Unlock()
	reg.wg.Wait()
}
