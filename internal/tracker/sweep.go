package tracker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/programme-lv/runtrack/internal/job"
	"golang.org/x/sync/errgroup"
)

// RefreshDue refreshes every job whose next check deadline has passed and
// returns how many were due. Failures of individual jobs are logged.
func (t *Tracker) RefreshDue(ctx context.Context) (int, error) {
	now := t.now()
	seen := mapset.NewThreadUnsafeSet[string]()
	var ids []string
	for _, kind := range []job.Kind{job.KindSubmission, job.KindRun} {
		due, err := t.store.Due(ctx, kind, now, t.opts.SweepBatch)
		if err != nil {
			return 0, fmt.Errorf("failed to load due %s jobs: %w", kind, err)
		}
		for _, j := range due {
			if seen.Add(j.ID) {
				ids = append(ids, j.ID)
			}
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var refreshed atomic.Int32
	var g errgroup.Group
	g.SetLimit(t.opts.SweepConcurrency)
	for _, id := range ids {
		g.Go(func() error {
			if _, err := t.Refresh(ctx, id, false); err != nil {
				t.log.Warn("failed to refresh job", "job", id, "err", err)
				return nil
			}
			refreshed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	t.log.Debug("sweep finished", "due", len(ids), "refreshed", refreshed.Load())
	return len(ids), nil
}

// Run sweeps due jobs every SweepInterval until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) error {
	interval := t.opts.SweepInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.log.Info("tracking jobs", "interval", interval, "concurrency", t.opts.SweepConcurrency)
	for {
		if _, err := t.RefreshDue(ctx); err != nil && ctx.Err() == nil {
			t.log.Error("sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// refreshListed brings due jobs of a listing up to date in place.
func (t *Tracker) refreshListed(ctx context.Context, jobs []*job.Job) {
	now := t.now()
	var g errgroup.Group
	g.SetLimit(t.opts.SweepConcurrency)
	for i, j := range jobs {
		if !j.Due(now) {
			continue
		}
		g.Go(func() error {
			fresh, err := t.Refresh(ctx, j.ID, false)
			if err != nil {
				t.log.Warn("failed to refresh job", "job", j.ID, "err", err)
				return nil
			}
			jobs[i] = fresh
			return nil
		})
	}
	_ = g.Wait()
}
