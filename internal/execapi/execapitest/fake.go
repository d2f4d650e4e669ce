// Package execapitest provides an in-memory exec API for tests.
package execapitest

import (
	"context"
	"fmt"
	"sync"

	"github.com/programme-lv/runtrack/internal/execapi"
)

// Fake is a scriptable execapi.Client. Submitted compilations and started
// runs begin enqueued; tests move them forward with SetCompile and SetRun.
type Fake struct {
	mu        sync.Mutex
	seq       int
	compile   map[string]execapi.CompileStatus
	run       map[string]execapi.RunStatus
	failures  map[string]error
	artifacts map[string][]byte
	calls     map[string]int

	SubmitErr   error
	StartRunErr error
}

var _ execapi.Client = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		compile:   map[string]execapi.CompileStatus{},
		run:       map[string]execapi.RunStatus{},
		failures:  map[string]error{},
		artifacts: map[string][]byte{},
		calls:     map[string]int{},
	}
}

// StatsBlob renders a statistics blob with fixed resource usage.
func StatsBlob(status, verdict string) string {
	return "time.wall: 120000\n" +
		"time.cpu.total: 100000\n" +
		"time.cpu.user: 90000\n" +
		"time.cpu.system: 10000\n" +
		"memory.max: 2097152\n" +
		"status: " + status + "\n" +
		"verdict: " + verdict + "\n"
}

func (f *Fake) SetCompile(id string, st execapi.CompileStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compile[id] = st
}

func (f *Fake) SetRun(id string, st execapi.RunStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.run[id] = st
}

// Fail makes status and artifact calls for id fail with err. A nil err clears it.
func (f *Fake) Fail(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, id)
		return
	}
	f.failures[id] = err
}

func (f *Fake) SetArtifact(id string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts[id] = data
}

// Calls returns how many status or artifact requests were made for id.
func (f *Fake) Calls(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *Fake) Submit(ctx context.Context, source []byte) (execapi.Submitted, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return execapi.Submitted{}, fmt.Errorf("%w: %w", execapi.ErrSubmissionRejected, f.SubmitErr)
	}
	f.seq++
	res := execapi.Submitted{
		ID:       fmt.Sprintf("c-%d", f.seq),
		SourceID: fmt.Sprintf("src-%d", f.seq),
	}
	f.compile[res.ID] = execapi.CompileStatus{Phase: execapi.PhaseEnqueued}
	f.artifacts[res.SourceID] = append([]byte(nil), source...)
	return res, nil
}

func (f *Fake) CompileStatus(ctx context.Context, id string) (*execapi.CompileStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.failures[id]; err != nil {
		return nil, err
	}
	st, ok := f.compile[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown compilation %s", execapi.ErrTransport, id)
	}
	if st.BinaryID != nil {
		bin := *st.BinaryID
		st.BinaryID = &bin
	}
	return &st, nil
}

func (f *Fake) RunStatus(ctx context.Context, id string) (*execapi.RunStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.failures[id]; err != nil {
		return nil, err
	}
	st, ok := f.run[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown run %s", execapi.ErrTransport, id)
	}
	return &st, nil
}

func (f *Fake) StartRun(ctx context.Context, binaryID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartRunErr != nil {
		return "", fmt.Errorf("%w: %w", execapi.ErrSubmissionRejected, f.StartRunErr)
	}
	f.seq++
	id := fmt.Sprintf("r-%d", f.seq)
	f.run[id] = execapi.RunStatus{Phase: execapi.PhaseEnqueued}
	return id, nil
}

func (f *Fake) Artifact(ctx context.Context, id string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[id]++
	if err := f.failures[id]; err != nil {
		return nil, err
	}
	data, ok := f.artifacts[id]
	if !ok {
		return nil, fmt.Errorf("%w: artifact %s not found", execapi.ErrTransport, id)
	}
	return append([]byte(nil), data...), nil
}
