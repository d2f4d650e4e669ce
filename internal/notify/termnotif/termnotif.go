// Package termnotif prints status events to a terminal.
package termnotif

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/programme-lv/runtrack/api"
)

var (
	pending = color.New(color.FgYellow)
	success = color.New(color.FgGreen, color.Bold)
	failure = color.New(color.FgRed, color.Bold)
	dead    = color.New(color.FgMagenta, color.Bold)
	faint   = color.New(color.Faint)
)

type TerminalNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// New writes to w, or to stdout when w is nil.
func New(w io.Writer) *TerminalNotifier {
	if w == nil {
		w = os.Stdout
	}
	return &TerminalNotifier{out: w}
}

func statusColor(status string) *color.Color {
	switch status {
	case "EN", "RU":
		return pending
	case "OK":
		return success
	case "FA":
		return dead
	default:
		return failure
	}
}

func (t *TerminalNotifier) Notify(ctx context.Context, ev api.StatusEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	at := ev.At
	if ts, err := time.Parse(time.RFC3339, ev.At); err == nil {
		at = ts.Local().Format(time.TimeOnly)
	}
	id := ev.JobID
	if len(id) > 8 {
		id = id[:8]
	}

	faint.Fprintf(t.out, "%s ", at)
	fmt.Fprintf(t.out, "%-10s %s (%s) ", ev.Kind, id, ev.ExternalID)
	if ev.PrevStatus != "" {
		statusColor(ev.PrevStatus).Fprint(t.out, ev.PrevStatus)
		fmt.Fprint(t.out, " -> ")
	}
	statusColor(ev.Status).Fprintf(t.out, "%s %s", ev.Status, ev.StatusLabel)
	if d := ev.RuntimeData; d != nil {
		faint.Fprintf(t.out, "  exit=%s %d cpu=%dms wall=%dms mem=%dKiB",
			d.ExitKind, d.ExitCode, d.CpuMillis, d.WallMillis, d.MemoryKiBytes)
	}
	if ev.Error != "" {
		failure.Fprintf(t.out, "  %s", ev.Error)
	}
	_, err := fmt.Fprintln(t.out)
	return err
}
