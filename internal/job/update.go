package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/programme-lv/runtrack/internal/execapi"
)

// Policy configures how often jobs are polled and how failures are retried.
type Policy struct {
	PollInterval time.Duration
	RetryBase    time.Duration
	RetryMax     time.Duration
	// MaxAttempts is the number of consecutive failed updates after which a
	// job becomes PhaseFailed. Zero disables the limit.
	MaxAttempts int
	CallTimeout time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		PollInterval: 500 * time.Millisecond,
		RetryBase:    500 * time.Millisecond,
		RetryMax:     30 * time.Second,
		MaxAttempts:  20,
		CallTimeout:  10 * time.Second,
	}
}

// Backoff returns the delay before retry number attempts (1-based).
func (p Policy) Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := p.RetryBase
	for i := 1; i < attempts; i++ {
		if d >= p.RetryMax {
			break
		}
		d *= 2
	}
	if p.RetryMax > 0 && d > p.RetryMax {
		d = p.RetryMax
	}
	return d
}

// Saver persists a job. Stores implement it.
type Saver interface {
	Save(ctx context.Context, j *Job) error
}

// fetcher knows how to poll one kind of job. The returned build func turns
// the raw finished status into an Outcome.
type fetcher func(ctx context.Context, c execapi.Client, externalID string) (execapi.Phase, func() (Outcome, error), error)

var fetchers = map[Kind]fetcher{
	KindSubmission: fetchCompilation,
	KindRun:        fetchRun,
}

func fetchCompilation(ctx context.Context, c execapi.Client, externalID string) (execapi.Phase, func() (Outcome, error), error) {
	st, err := c.CompileStatus(ctx, externalID)
	if err != nil {
		return 0, nil, err
	}
	return st.Phase, func() (Outcome, error) {
		o, err := BuildCompilationOutcome(st)
		if err != nil {
			return nil, err
		}
		return o, nil
	}, nil
}

func fetchRun(ctx context.Context, c execapi.Client, externalID string) (execapi.Phase, func() (Outcome, error), error) {
	st, err := c.RunStatus(ctx, externalID)
	if err != nil {
		return 0, nil, err
	}
	return st.Phase, func() (Outcome, error) {
		o, err := BuildRunOutcome(st)
		if err != nil {
			return nil, err
		}
		return o, nil
	}, nil
}

// Updater drives the job state machine against the exec API.
type Updater struct {
	client execapi.Client
	saver  Saver
	policy Policy
	log    *slog.Logger
	now    func() time.Time
}

func NewUpdater(client execapi.Client, saver Saver, policy Policy, log *slog.Logger) *Updater {
	if log == nil {
		log = slog.Default()
	}
	return &Updater{
		client: client,
		saver:  saver,
		policy: policy,
		log:    log,
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (u *Updater) SetClock(now func() time.Time) {
	u.now = now
}

func (u *Updater) Policy() Policy {
	return u.policy
}

// TryUpdate polls the exec API for the job if it is due (or force is set)
// and persists the resulting state exactly once. Exec API and payload
// failures are absorbed into the job's retry bookkeeping; the only error
// returned comes from persisting.
func (u *Updater) TryUpdate(ctx context.Context, j *Job, force bool) error {
	now := u.now()
	if !force && !j.Due(now) {
		return nil
	}

	fetch, ok := fetchers[j.Kind]
	if !ok {
		return fmt.Errorf("unknown job kind %q", j.Kind)
	}

	log := u.log.With("job", j.ID, "kind", j.Kind, "external_id", j.ExternalID)

	callCtx := ctx
	if u.policy.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, u.policy.CallTimeout)
		defer cancel()
	}

	phase, build, err := fetch(callCtx, u.client, j.ExternalID)
	switch {
	case err != nil:
		u.fetchFailed(j, now, err, log)
	case phase != execapi.PhaseFinished:
		prev := j.Phase
		j.Phase = phaseFromExec(phase)
		j.Outcome = nil
		j.Attempts = 0
		j.LastError = ""
		next := now.Add(u.policy.PollInterval)
		j.NextCheckAt = &next
		if prev != j.Phase {
			log.Info("job phase changed", "from", prev, "phase", j.Phase)
		}
	default:
		outcome, err := build()
		if err != nil {
			log.Warn("finished job has malformed outcome", "err", err)
			j.Phase = PhaseEnqueued
			j.Outcome = nil
			u.retryLater(j, now, fmt.Errorf("failed to build outcome: %w", err), log)
			break
		}
		j.Phase = PhaseFinished
		j.Outcome = outcome
		j.NextCheckAt = nil
		j.Attempts = 0
		j.LastError = ""
		log.Info("job finished",
			"verdict", outcome.Stats().Verdict,
			"exit", outcome.Stats().ExitStatus.String())
	}

	j.UpdatedAt = now
	if err := u.saver.Save(ctx, j); err != nil {
		return fmt.Errorf("failed to save job %s: %w", j.ID, err)
	}
	return nil
}

func (u *Updater) fetchFailed(j *Job, now time.Time, err error, log *slog.Logger) {
	switch j.Phase {
	case PhaseFinished:
		// a forced refresh of a finished job keeps the outcome it already has
		log.Warn("could not refresh finished job", "err", err)
		return
	case PhaseFailed:
		// stays dead unless the attempt limit has been raised since
		if u.policy.MaxAttempts > 0 && j.Attempts+1 >= u.policy.MaxAttempts {
			j.Attempts++
			j.LastError = err.Error()
			log.Warn("could not refresh failed job", "attempts", j.Attempts, "err", err)
			return
		}
		j.Phase = PhaseEnqueued
	}
	u.retryLater(j, now, fmt.Errorf("failed to fetch status: %w", err), log)
}

func (u *Updater) retryLater(j *Job, now time.Time, err error, log *slog.Logger) {
	j.Attempts++
	j.LastError = err.Error()
	if u.policy.MaxAttempts > 0 && j.Attempts >= u.policy.MaxAttempts {
		j.Phase = PhaseFailed
		j.Outcome = nil
		j.NextCheckAt = nil
		log.Error("giving up on job", "attempts", j.Attempts, "err", err)
		return
	}
	delay := u.policy.Backoff(j.Attempts)
	next := now.Add(delay)
	j.NextCheckAt = &next
	log.Warn("job update failed", "attempts", j.Attempts, "retry_in", delay, "err", err)
}
