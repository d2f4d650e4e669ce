package main

import (
	"bytes"
	"testing"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/programme-lv/runtrack/api"
	"github.com/stretchr/testify/assert"
)

func TestPrintJob(t *testing.T) {
	text.DisableColors()
	t.Cleanup(text.EnableColors)

	var buf bytes.Buffer
	printJob(&buf, api.JobView{
		ID:          "a1b2",
		Kind:        "run",
		ExternalID:  "r-1",
		Phase:       "finished",
		Status:      "TL",
		StatusLabel: "CPU time limit",
		RuntimeData: &api.RuntimeData{
			ExitKind:      "signaled",
			ExitCode:      9,
			Verdict:       "TL",
			CpuMillis:     4005,
			UserMillis:    3997,
			SystemMillis:  7,
			WallMillis:    4010,
			MemoryKiBytes: 280,
		},
	})
	out := buf.String()
	assert.Regexp(t, `status\s.*TL \(CPU time limit\)`, out)
	assert.Regexp(t, `exit\s.*signaled 9`, out)
	assert.Regexp(t, `memory\s.*280 KiB`, out)
	assert.NotContains(t, out, "next check")
	assert.NotContains(t, out, "attempts")
}
