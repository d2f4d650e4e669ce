package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/programme-lv/runtrack/internal/job"
	"github.com/programme-lv/runtrack/internal/store"
	"github.com/programme-lv/runtrack/internal/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGetSave(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	now := time.Now()

	j := job.NewSubmission("c-1", "a-src", "alice", now)
	require.NoError(t, s.Create(ctx, j))
	assert.Equal(t, int64(1), j.Version)
	require.Error(t, s.Create(ctx, j))

	got, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j, got)

	// callers get copies
	got.Phase = job.PhaseRunning
	again, err := s.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.PhaseEnqueued, again.Phase)

	require.NoError(t, s.Save(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	// again is now stale
	again.Phase = job.PhaseFinished
	err = s.Save(ctx, again)
	require.ErrorIs(t, err, store.ErrConflict)

	_, err = s.Get(ctx, "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
	err = s.Save(ctx, job.NewRun("r-1", j.ID, now))
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestDue(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	late := job.NewSubmission("c-1", "a-src", "alice", now.Add(-time.Minute))
	early := job.NewSubmission("c-2", "a-src", "alice", now.Add(-time.Hour))
	future := job.NewSubmission("c-3", "a-src", "alice", now.Add(time.Minute))
	done := job.NewSubmission("c-4", "a-src", "alice", now.Add(-time.Hour))
	done.Phase = job.PhaseFinished
	done.NextCheckAt = nil
	run := job.NewRun("r-1", early.ID, now.Add(-time.Hour))
	for _, j := range []*job.Job{late, early, future, done, run} {
		require.NoError(t, s.Create(ctx, j))
	}

	due, err := s.Due(ctx, job.KindSubmission, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, early.ID, due[0].ID)
	assert.Equal(t, late.ID, due[1].ID)

	due, err = s.Due(ctx, job.KindSubmission, now, 1)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, early.ID, due[0].ID)

	due, err = s.Due(ctx, job.KindRun, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, run.ID, due[0].ID)
}

func TestLists(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	now := time.Now()

	older := job.NewSubmission("c-1", "a-src", "alice", now.Add(-time.Minute))
	newer := job.NewSubmission("c-2", "a-src", "alice", now)
	other := job.NewSubmission("c-3", "a-src", "bob", now)
	run1 := job.NewRun("r-1", older.ID, now.Add(-time.Second))
	run2 := job.NewRun("r-2", older.ID, now)
	for _, j := range []*job.Job{older, newer, other, run1, run2} {
		require.NoError(t, s.Create(ctx, j))
	}

	subs, err := s.ListSubmissions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, newer.ID, subs[0].ID)
	assert.Equal(t, older.ID, subs[1].ID)

	runs, err := s.ListRuns(ctx, older.ID)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, run2.ID, runs[0].ID)

	runs, err = s.ListRuns(ctx, newer.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
