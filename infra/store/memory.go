package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/crewsched/core/commit"
	"github.com/kilianp07/crewsched/core/model"
)

// MemoryStore keeps assignments in a map. Server ids are "asg-<n>".
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]model.Assignment
	seq   int
	jobs  model.JobMap
}

// NewMemoryStore seeds the store with items and jobs.
func NewMemoryStore(items []model.Assignment, jobs model.JobMap) *MemoryStore {
	s := &MemoryStore{items: make(map[string]model.Assignment, len(items)), jobs: model.JobMap{}}
	for _, a := range items {
		s.items[a.ID] = a
	}
	for id, j := range jobs {
		s.jobs[id] = j
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return model.Assignment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	a.ID = fmt.Sprintf("asg-%d", s.seq)
	s.items[a.ID] = a
	return a, nil
}

func (s *MemoryStore) Update(ctx context.Context, a model.Assignment) (model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return model.Assignment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[a.ID]; !ok {
		return model.Assignment{}, commit.ErrNotFound
	}
	s.items[a.ID] = a
	return a, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return commit.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, day model.DayKey) ([]model.Assignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	var out []model.Assignment
	for _, a := range s.items {
		if a.Date == day {
			out = append(out, a)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CrewID != out[j].CrewID {
			return out[i].CrewID < out[j].CrewID
		}
		if out[i].StartMinutes != out[j].StartMinutes {
			return out[i].StartMinutes < out[j].StartMinutes
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// PutJobs inserts or replaces jobs.
func (s *MemoryStore) PutJobs(_ context.Context, jobs []model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return nil
}

// Jobs returns a copy of the job directory.
func (s *MemoryStore) Jobs(context.Context) (model.JobMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(model.JobMap, len(s.jobs))
	for id, j := range s.jobs {
		out[id] = j
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
