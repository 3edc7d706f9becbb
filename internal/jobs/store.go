package jobs

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/tubedrop/pkg/models"
)

// Store is the in-memory job table. One lock covers the whole map so any
// read-modify-write of a job is a single critical section.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.Job
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[uuid.UUID]*models.Job)}
}

// Create inserts job and returns its id. A zero id is replaced with a new one.
func (s *Store) Create(job models.Job) uuid.UUID {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	j := job.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = &j
	return j.ID
}

// Get returns a snapshot of the job.
func (s *Store) Get(id uuid.UUID) (models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	return j.Clone(), nil
}

// Mutate applies fn to a copy of the job and commits it only if fn returns nil.
// Terminal jobs are never modified. The committed snapshot is returned.
func (s *Store) Mutate(id uuid.UUID, fn func(*models.Job) error) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return models.Job{}, ErrNotFound
	}
	if j.Status.IsTerminal() {
		return j.Clone(), ErrJobTerminal
	}

	next := j.Clone()
	if err := fn(&next); err != nil {
		return j.Clone(), err
	}
	*j = next
	return next.Clone(), nil
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// List returns snapshots of all jobs, newest first.
func (s *Store) List() []models.Job {
	s.mu.RLock()
	out := make([]models.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out
}
