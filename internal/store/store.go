// Package store defines persistence of tracked jobs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/programme-lv/runtrack/internal/job"
)

var (
	ErrNotFound = errors.New("job not found")
	// ErrConflict is returned by Save when the job was written by someone
	// else since it was loaded.
	ErrConflict = errors.New("job was modified concurrently")
)

// Store persists jobs. Implementations own Job.Version: Create sets it to 1
// and every successful Save increments it.
type Store interface {
	job.Saver

	Create(ctx context.Context, j *job.Job) error
	Get(ctx context.Context, id string) (*job.Job, error)
	// Due returns up to limit jobs of the given kind whose next check is at
	// or before now, earliest first.
	Due(ctx context.Context, kind job.Kind, now time.Time, limit int) ([]*job.Job, error)
	// ListSubmissions returns the owner's submissions, newest first.
	ListSubmissions(ctx context.Context, owner string) ([]*job.Job, error)
	// ListRuns returns the runs of a submission, newest first.
	ListRuns(ctx context.Context, submissionID string) ([]*job.Job, error)
}
