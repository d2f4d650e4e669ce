package job

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/programme-lv/runtrack/internal/execapi"
)

// Kind tells a compilation (submission) apart from an execution (run).
type Kind string

const (
	KindSubmission Kind = "submission"
	KindRun        Kind = "run"
)

// Phase is the locally tracked lifecycle stage of a job.
type Phase string

const (
	PhaseEnqueued Phase = "enqueued"
	PhaseRunning  Phase = "running"
	PhaseFinished Phase = "finished"
	// PhaseFailed is terminal: the job could not be updated after repeated attempts.
	PhaseFailed Phase = "failed"
)

func ParsePhase(s string) (Phase, error) {
	switch p := Phase(s); p {
	case PhaseEnqueued, PhaseRunning, PhaseFinished, PhaseFailed:
		return p, nil
	}
	return "", fmt.Errorf("unknown phase %q", s)
}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindSubmission, KindRun:
		return k, nil
	}
	return "", fmt.Errorf("unknown job kind %q", s)
}

func phaseFromExec(p execapi.Phase) Phase {
	switch p {
	case execapi.PhaseRunning:
		return PhaseRunning
	case execapi.PhaseFinished:
		return PhaseFinished
	default:
		return PhaseEnqueued
	}
}

// Job is a compilation or run tracked against the exec API.
type Job struct {
	ID         string
	Kind       Kind
	ExternalID string
	Phase      Phase
	// NextCheckAt is nil once the job is finished or failed.
	NextCheckAt *time.Time
	// Outcome is set only while Phase is PhaseFinished.
	Outcome   Outcome
	CreatedAt time.Time
	UpdatedAt time.Time

	// submission only
	Owner    string
	SourceID string

	// run only
	ParentID string

	// Attempts counts consecutive unsuccessful updates.
	Attempts  int
	LastError string

	// Version is maintained by the store for optimistic concurrency.
	Version int64
}

// NewSubmission creates an enqueued compilation job that is due for a check immediately.
func NewSubmission(externalID, sourceID, owner string, now time.Time) *Job {
	j := newJob(KindSubmission, externalID, now)
	j.SourceID = sourceID
	j.Owner = owner
	return j
}

// NewRun creates an enqueued run job of the given submission.
func NewRun(externalID, parentID string, now time.Time) *Job {
	j := newJob(KindRun, externalID, now)
	j.ParentID = parentID
	return j
}

func newJob(kind Kind, externalID string, now time.Time) *Job {
	next := now
	return &Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		ExternalID:  externalID,
		Phase:       PhaseEnqueued,
		NextCheckAt: &next,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Due reports whether the job's next check deadline has been reached.
func (j *Job) Due(now time.Time) bool {
	return j.NextCheckAt != nil && !j.NextCheckAt.After(now)
}

// Compilation returns the compilation outcome, or nil.
func (j *Job) Compilation() *CompilationOutcome {
	o, _ := j.Outcome.(*CompilationOutcome)
	return o
}

// Run returns the run outcome, or nil.
func (j *Job) Run() *RunOutcome {
	o, _ := j.Outcome.(*RunOutcome)
	return o
}

// Clone returns a deep copy of the job.
func (j *Job) Clone() *Job {
	c := *j
	if j.NextCheckAt != nil {
		next := *j.NextCheckAt
		c.NextCheckAt = &next
	}
	if j.Outcome != nil {
		c.Outcome = j.Outcome.clone()
	}
	return &c
}
