package stats

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Keys of the sandbox statistics blob, e.g.
//
//	time.wall: 4010041
//	time.cpu.total: 4005683
//	time.cpu.user: 3997696
//	time.cpu.system: 7987
//	memory.max: 286720
//	status: signaled 9
//	verdict: TL
const (
	KeyWallTime      = "time.wall"
	KeyCpuTotalTime  = "time.cpu.total"
	KeyCpuUserTime   = "time.cpu.user"
	KeyCpuSystemTime = "time.cpu.system"
	KeyMaxMemory     = "memory.max"
	KeyStatus        = "status"
	KeyVerdict       = "verdict"
)

// Parse parses a newline separated "key: value" statistics blob.
// Unknown keys are ignored and a repeated key keeps its last value.
func Parse(raw string) (*Statistics, error) {
	fields := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: line %q is not a key-value pair", ErrMalformed, line)
		}
		fields[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	p := parser{fields: fields}
	res := &Statistics{
		WallTime:       p.micros(KeyWallTime),
		CpuTotalTime:   p.micros(KeyCpuTotalTime),
		CpuUserTime:    p.micros(KeyCpuUserTime),
		CpuSystemTime:  p.micros(KeyCpuSystemTime),
		MaxMemoryBytes: p.bytes(KeyMaxMemory),
		ExitStatus:     p.exitStatus(KeyStatus),
		Verdict:        p.verdict(KeyVerdict),
	}
	if p.err != nil {
		return nil, p.err
	}
	return res, nil
}

// ParseExitStatus parses "exited <code>" or "signaled <code>".
func ParseExitStatus(s string) (ExitStatus, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return ExitStatus{}, fmt.Errorf("%w: exit status %q", ErrMalformed, s)
	}
	var kind ExitKind
	switch parts[0] {
	case string(Exited):
		kind = Exited
	case string(Signaled):
		kind = Signaled
	default:
		return ExitStatus{}, fmt.Errorf("%w: unknown exit type %q", ErrMalformed, parts[0])
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return ExitStatus{}, fmt.Errorf("%w: exit code %q: %v", ErrMalformed, parts[1], err)
	}
	return ExitStatus{Kind: kind, Code: code}, nil
}

// parser keeps the first error, so Parse reads like a struct literal.
type parser struct {
	fields map[string]string
	err    error
}

func (p *parser) get(key string) (string, bool) {
	if p.err != nil {
		return "", false
	}
	v, ok := p.fields[key]
	if !ok {
		p.err = fmt.Errorf("%w: missing key %q", ErrMalformed, key)
		return "", false
	}
	return v, true
}

func (p *parser) micros(key string) time.Duration {
	v, ok := p.get(key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 || n > math.MaxInt64/int64(time.Microsecond) {
		p.err = fmt.Errorf("%w: %s: invalid microseconds %q", ErrMalformed, key, v)
		return 0
	}
	return time.Duration(n) * time.Microsecond
}

func (p *parser) bytes(key string) uint64 {
	v, ok := p.get(key)
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		p.err = fmt.Errorf("%w: %s: invalid byte count %q", ErrMalformed, key, v)
		return 0
	}
	return n
}

func (p *parser) exitStatus(key string) ExitStatus {
	v, ok := p.get(key)
	if !ok {
		return ExitStatus{}
	}
	es, err := ParseExitStatus(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return es
}

func (p *parser) verdict(key string) Verdict {
	v, ok := p.get(key)
	if !ok {
		return ""
	}
	verdict, err := ParseVerdict(v)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", key, err)
	}
	return verdict
}
