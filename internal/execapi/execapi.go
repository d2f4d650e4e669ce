package execapi

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTransport wraps every failure to talk to the exec API.
	ErrTransport = errors.New("exec api transport error")
	// ErrMalformedResponse is wrapped together with ErrTransport when the
	// exec API answered with a body that could not be understood.
	ErrMalformedResponse = errors.New("malformed exec api response")
	// ErrSubmissionRejected is returned when a job could not be submitted.
	ErrSubmissionRejected = errors.New("submission rejected")
)

// Phase is the exec-service-reported lifecycle stage of a job.
type Phase int

const (
	PhaseEnqueued Phase = iota + 1
	PhaseRunning
	PhaseFinished
)

// ParsePhase maps the exec API's phase vocabulary. Anything else is rejected.
func ParsePhase(s string) (Phase, error) {
	switch s {
	case "enqueued":
		return PhaseEnqueued, nil
	case "processing":
		return PhaseRunning, nil
	case "finished":
		return PhaseFinished, nil
	}
	return 0, fmt.Errorf("%w: unknown phase %q", ErrMalformedResponse, s)
}

func (p Phase) String() string {
	switch p {
	case PhaseEnqueued:
		return "enqueued"
	case PhaseRunning:
		return "processing"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Submitted identifies a freshly submitted compilation.
type Submitted struct {
	ID       string
	SourceID string
}

// CompileStatus is the raw state of a compilation. Stats and the artifact
// ids are only meaningful once Phase is PhaseFinished.
type CompileStatus struct {
	Phase      Phase
	Stats      string
	ErrorLogID string
	BinaryID   *string
}

// RunStatus is the raw state of a run.
type RunStatus struct {
	Phase    Phase
	Stats    string
	StdoutID string
	StderrID string
}

// Client is the remote interface of the exec API.
type Client interface {
	Submit(ctx context.Context, source []byte) (Submitted, error)
	CompileStatus(ctx context.Context, id string) (*CompileStatus, error)
	RunStatus(ctx context.Context, id string) (*RunStatus, error)
	StartRun(ctx context.Context, binaryID string) (string, error)
	Artifact(ctx context.Context, id string) ([]byte, error)
}
