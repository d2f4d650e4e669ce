package api

// JobView is the JSON representation of a tracked job
type JobView struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	ExternalID  string `json:"external_id"`
	Phase       string `json:"phase"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`

	NextCheckAt *string `json:"next_check_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`

	// Submission fields
	Owner    string `json:"owner,omitempty"`
	SourceID string `json:"source_id,omitempty"`

	// Run fields
	ParentID string `json:"parent_id,omitempty"`

	// Retry bookkeeping
	Attempts  int    `json:"attempts,omitempty"`
	LastError string `json:"last_error,omitempty"`

	// Outcome, only for finished jobs
	RuntimeData *RuntimeData `json:"runtime_data,omitempty"`
	ErrorLogID  string       `json:"error_log_id,omitempty"`
	BinaryID    *string      `json:"binary_id,omitempty"`
	StdoutID    string       `json:"stdout_id,omitempty"`
	StderrID    string       `json:"stderr_id,omitempty"`
}

// SubmissionView is a submission together with its runs
type SubmissionView struct {
	JobView
	Runs []JobView `json:"runs,omitempty"`
}
