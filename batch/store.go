package batch

import (
	"context"
	"sync"

	"github.com/loomworks/loom/errors"
)

// Store is the in-memory job registry. Jobs are written only by their owning
// orchestrator goroutine through Update; readers get snapshot copies, never
// the live object. Entries live for the process lifetime.
type Store struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	cancels map[string]context.CancelFunc
}

// NewStore creates an empty job store
func NewStore() *Store {
	return &Store{
		jobs:    make(map[string]*Job),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Create registers a new job and the cancel function of its goroutine
func (s *Store) Create(job *Job, cancel context.CancelFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	s.cancels[job.ID] = cancel
}

// Get returns a snapshot copy of a job
func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("job %s not found", id)
	}
	return snapshot(job), nil
}

// Results returns the ordered per-record results of a terminal job
func (s *Store) Results(id string) ([]RecordResult, error) {
	job, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !job.Status.IsTerminal() {
		return nil, errors.NewInvalidRequestError("job %s is not yet complete", id)
	}
	return job.Results, nil
}

// Update applies a mutation under the write lock. Only the owning
// orchestrator goroutine may call it.
func (s *Store) Update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

// Cancel asks a running job to stop. Cancelling a terminal or unknown job
// has no effect.
func (s *Store) Cancel(id string) error {
	s.mu.RLock()
	job, ok := s.jobs[id]
	cancel := s.cancels[id]
	s.mu.RUnlock()

	if !ok {
		return errors.NewNotFoundError("job %s not found", id)
	}
	if job.Status.IsTerminal() || cancel == nil {
		return nil
	}
	cancel()
	return nil
}

// snapshot deep-copies the fields readers may hold on to
func snapshot(job *Job) *Job {
	copied := *job
	if job.Results != nil {
		copied.Results = make([]RecordResult, len(job.Results))
		copy(copied.Results, job.Results)
	}
	if job.StartedAt != nil {
		t := *job.StartedAt
		copied.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		copied.CompletedAt = &t
	}
	return &copied
}
