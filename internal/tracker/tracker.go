// Package tracker exposes job tracking operations to the rest of the system.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/programme-lv/runtrack/internal/execapi"
	"github.com/programme-lv/runtrack/internal/job"
	"github.com/programme-lv/runtrack/internal/notify"
	"github.com/programme-lv/runtrack/internal/respbuilder"
	"github.com/programme-lv/runtrack/internal/store"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrPrecondition is returned when an operation is not allowed in the
// job's current state.
var ErrPrecondition = errors.New("precondition failed")

type Options struct {
	Policy           job.Policy
	SweepInterval    time.Duration
	SweepConcurrency int
	SweepBatch       int
}

func DefaultOptions() Options {
	return Options{
		Policy:           job.DefaultPolicy(),
		SweepInterval:    time.Second,
		SweepConcurrency: 8,
		SweepBatch:       100,
	}
}

// ArtifactSource returns artifacts by id. *artifact.Cache implements it.
type ArtifactSource interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

type Tracker struct {
	exec      execapi.Client
	store     store.Store
	updater   *job.Updater
	notifier  notify.Notifier
	artifacts ArtifactSource
	opts      Options
	log       *slog.Logger
	now       func() time.Time

	// one mutex per job id, held across load, update and save
	locks *xsync.MapOf[string, *sync.Mutex]
}

// New creates a tracker. A nil notifier discards events and a nil artifact
// source downloads artifacts from the exec API on every call.
func New(
	exec execapi.Client,
	st store.Store,
	notifier notify.Notifier,
	artifacts ArtifactSource,
	opts Options,
	log *slog.Logger,
) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if artifacts == nil {
		artifacts = directArtifacts{exec}
	}
	if opts.SweepConcurrency <= 0 {
		opts.SweepConcurrency = 1
	}
	return &Tracker{
		exec:      exec,
		store:     st,
		updater:   job.NewUpdater(exec, st, opts.Policy, log),
		notifier:  notifier,
		artifacts: artifacts,
		opts:      opts,
		log:       log,
		now:       time.Now,
		locks:     xsync.NewMapOf[string, *sync.Mutex](),
	}
}

type directArtifacts struct {
	exec execapi.Client
}

func (d directArtifacts) Get(ctx context.Context, id string) ([]byte, error) {
	return d.exec.Artifact(ctx, id)
}

// SetClock replaces the time source of the tracker and its updater.
func (t *Tracker) SetClock(now func() time.Time) {
	t.now = now
	t.updater.SetClock(now)
}

func (t *Tracker) lock(id string) func() {
	mu, _ := t.locks.LoadOrCompute(id, func() *sync.Mutex { return &sync.Mutex{} })
	mu.Lock()
	return mu.Unlock
}

// CreateSubmission submits source code for compilation and starts tracking it.
func (t *Tracker) CreateSubmission(ctx context.Context, source []byte, owner string) (*job.Job, error) {
	res, err := t.exec.Submit(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to submit source: %w", err)
	}
	j := job.NewSubmission(res.ID, res.SourceID, owner, t.now())
	if err := t.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("failed to store submission: %w", err)
	}
	t.log.Info("submission created", "job", j.ID, "external_id", j.ExternalID, "owner", owner)
	t.emit(ctx, j, "")
	return j, nil
}

// CreateRun starts executing the binary of a successfully compiled submission.
func (t *Tracker) CreateRun(ctx context.Context, submissionID string) (*job.Job, error) {
	sub, err := t.Refresh(ctx, submissionID, false)
	if err != nil {
		return nil, err
	}
	if sub.Kind != job.KindSubmission {
		return nil, fmt.Errorf("%w: job %s is a %s, not a submission", ErrPrecondition, sub.ID, sub.Kind)
	}
	if status := job.OverallStatus(sub); status != job.StatusOK {
		return nil, fmt.Errorf("%w: submission %s has status %s", ErrPrecondition, sub.ID, status)
	}
	c := sub.Compilation()
	if c == nil || c.BinaryID == nil {
		return nil, fmt.Errorf("%w: submission %s produced no binary", ErrPrecondition, sub.ID)
	}

	runID, err := t.exec.StartRun(ctx, *c.BinaryID)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	r := job.NewRun(runID, sub.ID, t.now())
	if err := t.store.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to store run: %w", err)
	}
	t.log.Info("run created", "job", r.ID, "external_id", r.ExternalID, "submission", sub.ID)
	t.emit(ctx, r, "")
	return r, nil
}

// Refresh updates the job from the exec API if it is due, or unconditionally
// when force is set, and returns its current state.
func (t *Tracker) Refresh(ctx context.Context, id string, force bool) (*job.Job, error) {
	unlock := t.lock(id)
	defer unlock()

	j, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := job.DisplayStatus(j)

	if err := t.updater.TryUpdate(ctx, j, force); err != nil {
		if errors.Is(err, store.ErrConflict) {
			t.log.Warn("job was refreshed elsewhere", "job", id, "err", err)
		}
		return nil, err
	}

	if job.DisplayStatus(j) != prev {
		t.emit(ctx, j, prev)
	}
	return j, nil
}

// AggregatedStatus returns the overall status of a job as last recorded.
func (t *Tracker) AggregatedStatus(ctx context.Context, id string) (job.Status, error) {
	j, err := t.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return job.OverallStatus(j), nil
}

func (t *Tracker) Get(ctx context.Context, id string) (*job.Job, error) {
	return t.store.Get(ctx, id)
}

// ListSubmissions returns the owner's submissions, newest first, refreshing
// those that are due.
func (t *Tracker) ListSubmissions(ctx context.Context, owner string) ([]*job.Job, error) {
	jobs, err := t.store.ListSubmissions(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	t.refreshListed(ctx, jobs)
	return jobs, nil
}

// ListRuns returns the runs of a submission, newest first, refreshing those
// that are due.
func (t *Tracker) ListRuns(ctx context.Context, submissionID string) ([]*job.Job, error) {
	jobs, err := t.store.ListRuns(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	t.refreshListed(ctx, jobs)
	return jobs, nil
}

// Artifact returns the contents of a source, log, output or binary artifact.
func (t *Tracker) Artifact(ctx context.Context, id string) ([]byte, error) {
	return t.artifacts.Get(ctx, id)
}

func (t *Tracker) emit(ctx context.Context, j *job.Job, prev job.Status) {
	ev := respbuilder.Event(j, prev, t.now())
	if err := t.notifier.Notify(ctx, ev); err != nil {
		t.log.Warn("failed to deliver status event", "job", j.ID, "status", ev.Status, "err", err)
	}
}
