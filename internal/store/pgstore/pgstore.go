// Package pgstore keeps jobs in PostgreSQL.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/programme-lv/runtrack/internal/job"
	"github.com/programme-lv/runtrack/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL,
	external_id   TEXT NOT NULL,
	phase         TEXT NOT NULL,
	next_check_at TIMESTAMPTZ,
	outcome       JSONB,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL,
	owner         TEXT NOT NULL DEFAULT '',
	source_id     TEXT NOT NULL DEFAULT '',
	parent_id     TEXT NOT NULL DEFAULT '',
	attempts      INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT NOT NULL DEFAULT '',
	version       BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_due_idx ON jobs (kind, next_check_at) WHERE next_check_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS jobs_owner_idx ON jobs (owner, created_at DESC) WHERE kind = 'submission';
CREATE INDEX IF NOT EXISTS jobs_parent_idx ON jobs (parent_id, created_at DESC) WHERE kind = 'run';
`

const columns = `id, kind, external_id, phase, next_check_at, outcome, created_at, updated_at,
	owner, source_id, parent_id, attempts, last_error, version`

type jobRow struct {
	ID          string     `db:"id"`
	Kind        string     `db:"kind"`
	ExternalID  string     `db:"external_id"`
	Phase       string     `db:"phase"`
	NextCheckAt *time.Time `db:"next_check_at"`
	Outcome     *string    `db:"outcome"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	Owner       string     `db:"owner"`
	SourceID    string     `db:"source_id"`
	ParentID    string     `db:"parent_id"`
	Attempts    int        `db:"attempts"`
	LastError   string     `db:"last_error"`
	Version     int64      `db:"version"`
}

func toRow(j *job.Job) (*jobRow, error) {
	outcome, err := job.MarshalOutcome(j.Outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to encode outcome of job %s: %w", j.ID, err)
	}
	r := &jobRow{
		ID:          j.ID,
		Kind:        string(j.Kind),
		ExternalID:  j.ExternalID,
		Phase:       string(j.Phase),
		NextCheckAt: j.NextCheckAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		Owner:       j.Owner,
		SourceID:    j.SourceID,
		ParentID:    j.ParentID,
		Attempts:    j.Attempts,
		LastError:   j.LastError,
		Version:     j.Version,
	}
	if outcome != nil {
		s := string(outcome)
		r.Outcome = &s
	}
	return r, nil
}

func (r *jobRow) toJob() (*job.Job, error) {
	kind, err := job.ParseKind(r.Kind)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", r.ID, err)
	}
	phase, err := job.ParsePhase(r.Phase)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", r.ID, err)
	}
	var outcome job.Outcome
	if r.Outcome != nil {
		outcome, err = job.UnmarshalOutcome(kind, []byte(*r.Outcome))
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", r.ID, err)
		}
	}
	return &job.Job{
		ID:          r.ID,
		Kind:        kind,
		ExternalID:  r.ExternalID,
		Phase:       phase,
		NextCheckAt: r.NextCheckAt,
		Outcome:     outcome,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		Owner:       r.Owner,
		SourceID:    r.SourceID,
		ParentID:    r.ParentID,
		Attempts:    r.Attempts,
		LastError:   r.LastError,
		Version:     r.Version,
	}, nil
}

type PgStore struct {
	db *sqlx.DB
}

var _ store.Store = (*PgStore)(nil)

func New(db *sqlx.DB) *PgStore {
	return &PgStore{db: db}
}

// Open connects to the database at dsn.
func Open(ctx context.Context, dsn string) (*PgStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return New(db), nil
}

func (s *PgStore) Close() error {
	return s.db.Close()
}

// Migrate creates the jobs table and its indexes if they do not exist.
func (s *PgStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate jobs table: %w", err)
	}
	return nil
}

func (s *PgStore) Create(ctx context.Context, j *job.Job) error {
	r, err := toRow(j)
	if err != nil {
		return err
	}
	r.Version = 1
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO jobs (`+columns+`) VALUES (
		:id, :kind, :external_id, :phase, :next_check_at, :outcome, :created_at, :updated_at,
		:owner, :source_id, :parent_id, :attempts, :last_error, :version)`, r)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", j.ID, err)
	}
	j.Version = 1
	return nil
}

func (s *PgStore) Get(ctx context.Context, id string) (*job.Job, error) {
	var r jobRow
	err := s.db.GetContext(ctx, &r, `SELECT `+columns+` FROM jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select job %s: %w", id, err)
	}
	return r.toJob()
}

func (s *PgStore) Save(ctx context.Context, j *job.Job) error {
	r, err := toRow(j)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, `UPDATE jobs SET
		phase = :phase,
		next_check_at = :next_check_at,
		outcome = :outcome,
		updated_at = :updated_at,
		attempts = :attempts,
		last_error = :last_error,
		version = version + 1
		WHERE id = :id AND version = :version`, r)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", j.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", j.ID, err)
	}
	if n == 0 {
		var exists bool
		err = s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, j.ID)
		if err != nil {
			return fmt.Errorf("failed to check job %s: %w", j.ID, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s", store.ErrNotFound, j.ID)
		}
		return fmt.Errorf("%w: %s at version %d", store.ErrConflict, j.ID, j.Version)
	}
	j.Version++
	return nil
}

func (s *PgStore) Due(ctx context.Context, kind job.Kind, now time.Time, limit int) ([]*job.Job, error) {
	var lim any
	if limit > 0 {
		lim = limit
	}
	return s.selectJobs(ctx, `SELECT `+columns+` FROM jobs
		WHERE kind = $1 AND next_check_at <= $2
		ORDER BY next_check_at
		LIMIT $3`, string(kind), now, lim)
}

func (s *PgStore) ListSubmissions(ctx context.Context, owner string) ([]*job.Job, error) {
	return s.selectJobs(ctx, `SELECT `+columns+` FROM jobs
		WHERE kind = 'submission' AND owner = $1
		ORDER BY created_at DESC, id`, owner)
}

func (s *PgStore) ListRuns(ctx context.Context, submissionID string) ([]*job.Job, error) {
	return s.selectJobs(ctx, `SELECT `+columns+` FROM jobs
		WHERE kind = 'run' AND parent_id = $1
		ORDER BY created_at DESC, id`, submissionID)
}

func (s *PgStore) selectJobs(ctx context.Context, query string, args ...any) ([]*job.Job, error) {
	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to select jobs: %w", err)
	}
	res := make([]*job.Job, 0, len(rows))
	for i := range rows {
		j, err := rows[i].toJob()
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, nil
}
