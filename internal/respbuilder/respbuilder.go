// Package respbuilder maps tracked jobs onto their api representations.
package respbuilder

import (
	"time"

	"github.com/programme-lv/runtrack/api"
	"github.com/programme-lv/runtrack/internal/job"
	"github.com/programme-lv/runtrack/internal/stats"
)

// RuntimeData summarizes statistics in milliseconds and kibibytes.
func RuntimeData(s *stats.Statistics) *api.RuntimeData {
	if s == nil {
		return nil
	}
	return &api.RuntimeData{
		ExitKind:      string(s.ExitStatus.Kind),
		ExitCode:      int64(s.ExitStatus.Code),
		Verdict:       string(s.Verdict),
		CpuMillis:     s.CpuTotalTime.Milliseconds(),
		UserMillis:    s.CpuUserTime.Milliseconds(),
		SystemMillis:  s.CpuSystemTime.Milliseconds(),
		WallMillis:    s.WallTime.Milliseconds(),
		MemoryKiBytes: int64(s.MaxMemoryBytes / 1024),
	}
}

func Job(j *job.Job) api.JobView {
	status := job.DisplayStatus(j)
	v := api.JobView{
		ID:          j.ID,
		Kind:        string(j.Kind),
		ExternalID:  j.ExternalID,
		Phase:       string(j.Phase),
		Status:      string(status),
		StatusLabel: status.Label(),
		CreatedAt:   j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   j.UpdatedAt.Format(time.RFC3339),
		Owner:       j.Owner,
		SourceID:    j.SourceID,
		ParentID:    j.ParentID,
		Attempts:    j.Attempts,
		LastError:   j.LastError,
	}
	if j.NextCheckAt != nil {
		next := j.NextCheckAt.Format(time.RFC3339Nano)
		v.NextCheckAt = &next
	}
	if j.Outcome != nil {
		v.RuntimeData = RuntimeData(j.Outcome.Stats())
	}
	if c := j.Compilation(); c != nil {
		v.ErrorLogID = c.ErrorLogID
		v.BinaryID = c.BinaryID
	}
	if r := j.Run(); r != nil {
		v.StdoutID = r.StdoutID
		v.StderrID = r.StderrID
	}
	return v
}

func Submission(sub *job.Job, runs []*job.Job) api.SubmissionView {
	v := api.SubmissionView{JobView: Job(sub)}
	for _, r := range runs {
		v.Runs = append(v.Runs, Job(r))
	}
	return v
}

// Event builds the notification for a job whose displayed status was prev.
// An empty prev marks a newly created job.
func Event(j *job.Job, prev job.Status, at time.Time) api.StatusEvent {
	status := job.DisplayStatus(j)

	msgType := api.StatusChangedMsg
	switch {
	case prev == "":
		msgType = api.JobCreatedMsg
	case j.Phase == job.PhaseFinished:
		msgType = api.JobFinishedMsg
	case j.Phase == job.PhaseFailed:
		msgType = api.JobFailedMsg
	}

	ev := api.StatusEvent{
		Header:      api.NewHeader(j.ID, msgType),
		Kind:        string(j.Kind),
		ExternalID:  j.ExternalID,
		Owner:       j.Owner,
		ParentID:    j.ParentID,
		PrevStatus:  string(prev),
		Status:      string(status),
		StatusLabel: status.Label(),
		At:          at.Format(time.RFC3339),
	}
	if j.Outcome != nil {
		ev.RuntimeData = RuntimeData(j.Outcome.Stats())
	}
	if j.Phase == job.PhaseFailed {
		ev.Error = j.LastError
	}
	return ev
}
