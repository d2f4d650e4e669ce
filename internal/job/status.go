package job

import "github.com/programme-lv/runtrack/internal/stats"

// Status is the user-facing aggregate of phase, verdict and exit status.
type Status string

const (
	StatusEnqueued         Status = "EN"
	StatusRunning          Status = "RU"
	StatusOK               Status = "OK"
	StatusWallTimeLimit    Status = "WT"
	StatusCpuTimeLimit     Status = "TL"
	StatusMemoryLimit      Status = "ML"
	StatusRuntimeError     Status = "RT"
	StatusCompilationError Status = "CE"
	StatusFailed           Status = "FA"
)

var statusLabels = map[Status]string{
	StatusEnqueued:         "Enqueued",
	StatusRunning:          "Running",
	StatusOK:               "OK",
	StatusWallTimeLimit:    "Wall time limit",
	StatusCpuTimeLimit:     "CPU time limit",
	StatusMemoryLimit:      "Memory limit",
	StatusRuntimeError:     "Runtime error",
	StatusCompilationError: "Compilation error",
	StatusFailed:           "Failed",
}

func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Terminal reports whether the status can no longer change without a forced refresh.
func (s Status) Terminal() bool {
	return s != StatusEnqueued && s != StatusRunning
}

// OverallStatus folds phase, resource verdict and exit status into one code.
// Resource verdicts take precedence over the exit status.
func OverallStatus(j *Job) Status {
	switch j.Phase {
	case PhaseEnqueued:
		return StatusEnqueued
	case PhaseRunning:
		return StatusRunning
	case PhaseFailed:
		return StatusFailed
	}
	if j.Outcome == nil {
		return StatusEnqueued
	}
	s := j.Outcome.Stats()
	switch s.Verdict {
	case stats.VerdictWallTimeLimit:
		return StatusWallTimeLimit
	case stats.VerdictCpuTimeLimit:
		return StatusCpuTimeLimit
	case stats.VerdictMemoryLimit:
		return StatusMemoryLimit
	}
	if !s.ExitStatus.IsOk() {
		return StatusRuntimeError
	}
	return StatusOK
}

// DisplayStatus is OverallStatus with a failed compiler run shown as a compilation error.
func DisplayStatus(j *Job) Status {
	s := OverallStatus(j)
	if s == StatusRuntimeError && j.Kind == KindSubmission {
		return StatusCompilationError
	}
	return s
}
