// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Store persists jobs. Implementations must be safe for concurrent use.
type Store interface {
	Put(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	// Update loads the job, applies fn and writes the result atomically.
	Update(ctx context.Context, id string, fn func(*Job) error) (Job, error)
	// List returns all jobs ordered by creation time.
	List(ctx context.Context) ([]Job, error)
	Close() error
}

// Open creates a Store for the configured backend.
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "badger":
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown job store backend: %s", backend)
	}
}

// MemoryStore keeps jobs in a map. State is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (m *MemoryStore) Put(_ context.Context, job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(*Job) error) (Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	if err := fn(&job); err != nil {
		return Job{}, err
	}
	m.jobs[id] = job
	return job, nil
}

func (m *MemoryStore) List(_ context.Context) ([]Job, error) {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		out = append(out, job)
	}
	m.mu.RUnlock()
	sortJobs(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func sortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
}
