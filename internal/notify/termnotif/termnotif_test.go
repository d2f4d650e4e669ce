package termnotif_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/programme-lv/runtrack/api"
	"github.com/programme-lv/runtrack/internal/notify/termnotif"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotify(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	n := termnotif.New(&buf)

	err := n.Notify(context.Background(), api.StatusEvent{
		Header:      api.NewHeader("0123456789abcdef", api.JobFinishedMsg),
		Kind:        "run",
		ExternalID:  "r-1",
		PrevStatus:  "RU",
		Status:      "TL",
		StatusLabel: "CPU time limit",
		RuntimeData: &api.RuntimeData{
			ExitKind:      "signaled",
			ExitCode:      9,
			CpuMillis:     1000,
			WallMillis:    1100,
			MemoryKiBytes: 2048,
		},
		At: "not a timestamp",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "01234567 (r-1)")
	assert.NotContains(t, out, "89abcdef")
	assert.Contains(t, out, "RU -> TL CPU time limit")
	assert.Contains(t, out, "exit=signaled 9 cpu=1000ms wall=1100ms mem=2048KiB")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}
