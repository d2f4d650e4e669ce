package stats

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformed is wrapped by every error returned from Parse.
var ErrMalformed = errors.New("malformed statistics")

// Verdict is the sandbox's resource-limit judgment, in its wire code form.
type Verdict string

const (
	VerdictOK            Verdict = "OK"
	VerdictWallTimeLimit Verdict = "WT"
	VerdictCpuTimeLimit  Verdict = "TL"
	VerdictMemoryLimit   Verdict = "ML"
)

func ParseVerdict(s string) (Verdict, error) {
	switch v := Verdict(s); v {
	case VerdictOK, VerdictWallTimeLimit, VerdictCpuTimeLimit, VerdictMemoryLimit:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown verdict %q", ErrMalformed, s)
}

type ExitKind string

const (
	Exited   ExitKind = "exited"
	Signaled ExitKind = "signaled"
)

type ExitStatus struct {
	Kind ExitKind `json:"kind"`
	Code int      `json:"code"`
}

// IsOk reports whether the process exited normally with code 0.
func (e ExitStatus) IsOk() bool {
	return e.Kind == Exited && e.Code == 0
}

func (e ExitStatus) String() string {
	return fmt.Sprintf("%s %d", e.Kind, e.Code)
}

// Statistics is the resource usage record reported for a finished job.
type Statistics struct {
	WallTime       time.Duration `json:"wall_time"`
	CpuTotalTime   time.Duration `json:"cpu_total_time"`
	CpuUserTime    time.Duration `json:"cpu_user_time"`
	CpuSystemTime  time.Duration `json:"cpu_system_time"`
	MaxMemoryBytes uint64        `json:"max_memory_bytes"`
	ExitStatus     ExitStatus    `json:"exit_status"`
	Verdict        Verdict       `json:"verdict"`
}
