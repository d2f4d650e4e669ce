package api

// RuntimeData is a compact summary of a finished job's resource usage
type RuntimeData struct {
	ExitKind string `json:"exit_kind"`
	ExitCode int64  `json:"exit"`
	Verdict  string `json:"verdict"`

	CpuMillis    int64 `json:"cpu_ms"`
	UserMillis   int64 `json:"user_ms"`
	SystemMillis int64 `json:"sys_ms"`
	WallMillis   int64 `json:"wall_ms"`

	MemoryKiBytes int64 `json:"mem_kib"`
}
