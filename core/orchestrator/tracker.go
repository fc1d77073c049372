package orchestrator

import (
	"sync"
	"time"

	"github.com/feaslabs/feasly/core/model"
)

// Job is one in-flight aggregation unit. Expected shrinks as answers arrive;
// an empty Expected set is the fan-in completion signal. Received keeps
// arrival order, which is also the order of the emitted breakdown.
type Job struct {
	ID        string
	Weights   map[model.Dimension]float64
	Expected  map[model.Dimension]struct{}
	Received  []model.DimensionResult
	CreatedAt time.Time
	CorrID    string
	ReplyTo   string
}

// newJob creates a job expecting every dimension.
func newJob(id string, weights map[model.Dimension]float64, corrID, replyTo string, now time.Time) *Job {
	expected := make(map[model.Dimension]struct{}, len(model.Dimensions))
	for _, d := range model.Dimensions {
		expected[d] = struct{}{}
	}
	return &Job{
		ID:        id,
		Weights:   weights,
		Expected:  expected,
		CreatedAt: now,
		CorrID:    corrID,
		ReplyTo:   replyTo,
	}
}

// Complete reports whether every expected dimension has answered.
func (j *Job) Complete() bool { return len(j.Expected) == 0 }

// Tracker is the authoritative in-memory table of in-flight jobs. All
// mutation happens on the orchestrator loop; the mutex additionally makes Pop
// an atomic remove-if-present so the completion and timeout paths can never
// both claim the same job.
type Tracker struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{jobs: make(map[string]*Job)}
}

// Create inserts a new job. Inserting an id that is already present is a
// no-op and reports false; ids are minted from uuids so this should never
// happen.
func (t *Tracker) Create(job *Job) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.jobs[job.ID]; exists {
		return false
	}
	t.jobs[job.ID] = job
	return true
}

// RecordResponse applies one specialist answer. A result for an unknown job
// (already completed or timed out) or for an already-satisfied dimension is
// dropped silently. It returns whether the result was recorded and whether
// the job is now complete.
func (t *Tracker) RecordResponse(jobID string, res model.DimensionResult) (recorded, complete bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	if !ok {
		return false, false
	}
	if _, pending := job.Expected[res.Dimension]; !pending {
		return false, job.Complete()
	}
	delete(job.Expected, res.Dimension)
	job.Received = append(job.Received, res)
	return true, job.Complete()
}

// IsComplete reports whether the job exists and has no pending dimensions.
func (t *Tracker) IsComplete(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	return ok && job.Complete()
}

// Pop atomically removes and returns the job. Exactly one of the completion
// and timeout paths wins; the loser sees ok == false and does nothing.
func (t *Tracker) Pop(jobID string) (*Job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[jobID]
	if ok {
		delete(t.jobs, jobID)
	}
	return job, ok
}

// SweepExpired removes and returns every job older than ttl at now.
func (t *Tracker) SweepExpired(now time.Time, ttl time.Duration) []*Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []*Job
	for id, job := range t.jobs {
		if now.Sub(job.CreatedAt) > ttl {
			expired = append(expired, job)
			delete(t.jobs, id)
		}
	}
	return expired
}

// Len returns the number of in-flight jobs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}
