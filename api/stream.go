package api

// MsgType is the message type of a status event
type MsgType string

const (
	JobCreatedMsg    MsgType = "job_created"
	StatusChangedMsg MsgType = "status_changed"
	JobFinishedMsg   MsgType = "job_finished"
	JobFailedMsg     MsgType = "job_failed"
)

// Output preview size constraints
const (
	MaxPreviewHeight = 40
	MaxPreviewWidth  = 80
)

// Header is the common header for all status events
type Header struct {
	JobID   string  `json:"job_id"`
	MsgType MsgType `json:"msg_type"`
}

// StatusEvent is published whenever the displayed status of a job changes
type StatusEvent struct {
	Header
	Kind       string `json:"kind"`
	ExternalID string `json:"external_id"`
	Owner      string `json:"owner,omitempty"`
	ParentID   string `json:"parent_id,omitempty"`

	PrevStatus  string `json:"prev_status,omitempty"`
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`

	// RuntimeData is present once the job has finished
	RuntimeData *RuntimeData `json:"runtime_data,omitempty"`
	// Error is the last update error of a failed job
	Error string `json:"error,omitempty"`

	At string `json:"at"`
}

func NewHeader(jobID string, msgType MsgType) Header {
	return Header{
		JobID:   jobID,
		MsgType: msgType,
	}
}
