package job

import (
	"encoding/json"
	"fmt"

	"github.com/programme-lv/runtrack/internal/execapi"
	"github.com/programme-lv/runtrack/internal/stats"
)

// Outcome is the finished-job payload: statistics plus kind specific artifact ids.
type Outcome interface {
	Stats() *stats.Statistics
	clone() Outcome
}

type CompilationOutcome struct {
	Statistics stats.Statistics `json:"statistics"`
	ErrorLogID string           `json:"error_log_id"`
	// BinaryID is nil when the compilation did not produce a binary.
	BinaryID *string `json:"binary_id,omitempty"`
}

func (o *CompilationOutcome) Stats() *stats.Statistics { return &o.Statistics }

func (o *CompilationOutcome) clone() Outcome {
	c := *o
	if o.BinaryID != nil {
		id := *o.BinaryID
		c.BinaryID = &id
	}
	return &c
}

type RunOutcome struct {
	Statistics stats.Statistics `json:"statistics"`
	StdoutID   string           `json:"stdout_id"`
	StderrID   string           `json:"stderr_id"`
}

func (o *RunOutcome) Stats() *stats.Statistics { return &o.Statistics }

func (o *RunOutcome) clone() Outcome {
	c := *o
	return &c
}

// BuildCompilationOutcome maps a finished compile status to its outcome.
func BuildCompilationOutcome(st *execapi.CompileStatus) (*CompilationOutcome, error) {
	s, err := stats.Parse(st.Stats)
	if err != nil {
		return nil, err
	}
	if st.ErrorLogID == "" {
		return nil, fmt.Errorf("%w: missing error log id", stats.ErrMalformed)
	}
	o := &CompilationOutcome{
		Statistics: *s,
		ErrorLogID: st.ErrorLogID,
	}
	if st.BinaryID != nil {
		id := *st.BinaryID
		o.BinaryID = &id
	}
	return o, nil
}

// BuildRunOutcome maps a finished run status to its outcome.
func BuildRunOutcome(st *execapi.RunStatus) (*RunOutcome, error) {
	s, err := stats.Parse(st.Stats)
	if err != nil {
		return nil, err
	}
	if st.StdoutID == "" || st.StderrID == "" {
		return nil, fmt.Errorf("%w: missing stdout or stderr id", stats.ErrMalformed)
	}
	return &RunOutcome{
		Statistics: *s,
		StdoutID:   st.StdoutID,
		StderrID:   st.StderrID,
	}, nil
}

// MarshalOutcome encodes an outcome for persistence. A nil outcome encodes to nil.
func MarshalOutcome(o Outcome) ([]byte, error) {
	if o == nil {
		return nil, nil
	}
	return json.Marshal(o)
}

// UnmarshalOutcome decodes an outcome persisted for a job of the given kind.
func UnmarshalOutcome(kind Kind, data []byte) (Outcome, error) {
	if len(data) == 0 {
		return nil, nil
	}
	switch kind {
	case KindSubmission:
		var o CompilationOutcome
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("failed to decode compilation outcome: %w", err)
		}
		return &o, nil
	case KindRun:
		var o RunOutcome
		if err := json.Unmarshal(data, &o); err != nil {
			return nil, fmt.Errorf("failed to decode run outcome: %w", err)
		}
		return &o, nil
	}
	return nil, fmt.Errorf("unknown job kind %q", kind)
}
