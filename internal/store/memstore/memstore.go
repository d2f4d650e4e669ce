// Package memstore keeps jobs in process memory.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/programme-lv/runtrack/internal/job"
	"github.com/programme-lv/runtrack/internal/store"
)

type MemStore struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
}

var _ store.Store = (*MemStore)(nil)

func New() *MemStore {
	return &MemStore{jobs: map[string]*job.Job{}}
}

func (s *MemStore) Create(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.ID]; ok {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	j.Version = 1
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	return j.Clone(), nil
}

func (s *MemStore) Save(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[j.ID]
	if !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, j.ID)
	}
	if cur.Version != j.Version {
		return fmt.Errorf("%w: %s has version %d, not %d", store.ErrConflict, j.ID, cur.Version, j.Version)
	}
	j.Version++
	s.jobs[j.ID] = j.Clone()
	return nil
}

func (s *MemStore) Due(ctx context.Context, kind job.Kind, now time.Time, limit int) ([]*job.Job, error) {
	res := s.filter(func(j *job.Job) bool {
		return j.Kind == kind && j.Due(now)
	})
	slices.SortFunc(res, func(a, b *job.Job) int {
		return a.NextCheckAt.Compare(*b.NextCheckAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (s *MemStore) ListSubmissions(ctx context.Context, owner string) ([]*job.Job, error) {
	return newestFirst(s.filter(func(j *job.Job) bool {
		return j.Kind == job.KindSubmission && j.Owner == owner
	})), nil
}

func (s *MemStore) ListRuns(ctx context.Context, submissionID string) ([]*job.Job, error) {
	return newestFirst(s.filter(func(j *job.Job) bool {
		return j.Kind == job.KindRun && j.ParentID == submissionID
	})), nil
}

func (s *MemStore) filter(keep func(*job.Job) bool) []*job.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var res []*job.Job
	for _, j := range s.jobs {
		if keep(j) {
			res = append(res, j.Clone())
		}
	}
	return res
}

func newestFirst(jobs []*job.Job) []*job.Job {
	slices.SortFunc(jobs, func(a, b *job.Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs
}
