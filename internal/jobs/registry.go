// Package jobs implements the JobRegistry: the single authority for job
// identity, lifecycle state and cancellation across a running databendd
// process. It mirrors the per-mode "*Jobs" registries of the reference
// implementation (one map of in-flight operations guarded by a mutex,
// keyed by a generated id, exposing register/cancel/finish).
package jobs

import (
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

// State is the lifecycle state of a job.
type State string

// Job lifecycle states.
const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
	StateCompleted State = "completed"
)

// Job tracks a single in-flight or completed transform operation.
type Job struct {
	ID        string
	Operation string // e.g. "pixelsort", "datamosh"
	CreatedAt time.Time

	mu        sync.RWMutex
	state     State
	err       error
	cancelled atomic.Bool
}

// State returns the job's current lifecycle state.
func (j *Job) State() State {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.state
}

// Err returns the terminal error, if any.
func (j *Job) Err() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.err
}

// Cancelled reports whether cancellation has been requested for this job.
// Pipeline code polls this from its frame loop to decide when to stop.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// setState transitions the job to a terminal or intermediate state.
func (j *Job) setState(s State, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.state = s
	j.err = err
}

// Registry is the JobRegistry: it owns job identity and lifecycle.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewRegistry creates an empty JobRegistry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Register creates and stores a new queued job for the given operation.
func (r *Registry) Register(operation string) *Job {
	job := &Job{
		ID:        newID(),
		Operation: operation,
		CreatedAt: time.Now(),
		state:     StateQueued,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return job
}

// Start marks a job as running.
func (r *Registry) Start(id string) error {
	job, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.setState(StateRunning, nil)
	return nil
}

// Cancel requests cancellation of a running job. It is idempotent: cancelling
// an already-cancelled or finished job is a no-op.
func (r *Registry) Cancel(id string) error {
	job, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	job.cancelled.Store(true)
	return nil
}

// Finish transitions a job to its terminal state. A nil err with a prior
// cancellation request records StateCancelled rather than StateCompleted.
func (r *Registry) Finish(id string, err error) error {
	job, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}

	switch {
	case err != nil:
		job.setState(StateFailed, err)
	case job.Cancelled():
		job.setState(StateCancelled, nil)
	default:
		job.setState(StateCompleted, nil)
	}

	return nil
}

// Get returns the job with the given id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// List returns a snapshot of all known jobs.
func (r *Registry) List() []*Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	return out
}

// Remove deletes a job from the registry, e.g. after its result has been
// consumed by the caller. Finish leaves the job in place; Pipeline.Run calls
// Remove for a job that ends cancelled.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, id)
}

// newID generates a lexically sortable job identifier.
func newID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
