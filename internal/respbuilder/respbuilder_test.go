package respbuilder_test

import (
	"testing"
	"time"

	"github.com/programme-lv/runtrack/api"
	"github.com/programme-lv/runtrack/internal/job"
	"github.com/programme-lv/runtrack/internal/respbuilder"
	"github.com/programme-lv/runtrack/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_FinishedCompilationError(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	j := job.NewSubmission("c-1", "a-src", "alice", now)
	j.Phase = job.PhaseFinished
	j.NextCheckAt = nil
	j.Outcome = &job.CompilationOutcome{
		Statistics: stats.Statistics{
			WallTime:       1500 * time.Millisecond,
			CpuTotalTime:   1200 * time.Millisecond,
			MaxMemoryBytes: 4096 * 1024,
			ExitStatus:     stats.ExitStatus{Kind: stats.Exited, Code: 1},
			Verdict:        stats.VerdictOK,
		},
		ErrorLogID: "a-log",
	}

	v := respbuilder.Job(j)
	assert.Equal(t, "CE", v.Status)
	assert.Equal(t, "Compilation error", v.StatusLabel)
	assert.Equal(t, "finished", v.Phase)
	assert.Nil(t, v.NextCheckAt)
	assert.Equal(t, "a-log", v.ErrorLogID)
	assert.Nil(t, v.BinaryID)
	require.NotNil(t, v.RuntimeData)
	assert.Equal(t, int64(1500), v.RuntimeData.WallMillis)
	assert.Equal(t, int64(1200), v.RuntimeData.CpuMillis)
	assert.Equal(t, int64(4096), v.RuntimeData.MemoryKiBytes)
	assert.Equal(t, int64(1), v.RuntimeData.ExitCode)
}

func TestEvent(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	j := job.NewRun("r-1", "parent", now)

	ev := respbuilder.Event(j, "", now)
	assert.Equal(t, api.JobCreatedMsg, ev.MsgType)
	assert.Equal(t, j.ID, ev.JobID)
	assert.Equal(t, "EN", ev.Status)
	assert.Empty(t, ev.PrevStatus)

	j.Phase = job.PhaseFailed
	j.NextCheckAt = nil
	j.LastError = "exec api transport error"
	ev = respbuilder.Event(j, job.StatusRunning, now)
	assert.Equal(t, api.JobFailedMsg, ev.MsgType)
	assert.Equal(t, "RU", ev.PrevStatus)
	assert.Equal(t, "FA", ev.Status)
	assert.Equal(t, "exec api transport error", ev.Error)
	assert.Equal(t, "parent", ev.ParentID)
	assert.Nil(t, ev.RuntimeData)
}
