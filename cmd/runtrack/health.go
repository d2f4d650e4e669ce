package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/nats-io/nats.go"
	"github.com/programme-lv/runtrack/internal/environment"
	"github.com/programme-lv/runtrack/internal/notify/sqsnotif"
	"github.com/programme-lv/runtrack/internal/store/pgstore"
	"github.com/urfave/cli/v3"
)

const (
	healthOK = iota
	healthWarning
	healthError
)

const healthTimeout = 5 * time.Second

type feedbackRow struct {
	unit    string
	health  int
	message string
}

func (a *app) healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check that configured dependencies are reachable",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			rows := checkHealth(ctx, a.cfg)
			outputFeedback(os.Stdout, rows)
			for _, row := range rows {
				if row.health == healthError {
					return cli.Exit("unhealthy", 1)
				}
			}
			return nil
		},
	}
}

func checkHealth(ctx context.Context, cfg *environment.Config) []feedbackRow {
	return []feedbackRow{
		checkExecApi(ctx, cfg),
		checkDatabase(ctx, cfg),
		checkCacheDir(cfg),
		checkNats(cfg),
		checkSqs(ctx, cfg),
	}
}

// checkExecApi treats any HTTP response from the base URL as reachable.
func checkExecApi(ctx context.Context, cfg *environment.Config) feedbackRow {
	row := feedbackRow{unit: "exec api"}
	if cfg.ExecApiUrl == "" {
		row.health = healthError
		row.message = "EXEC_API_URL is not set"
		return row
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ExecApiUrl, nil)
	if err != nil {
		row.health = healthError
		row.message = err.Error()
		return row
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		row.health = healthError
		row.message = err.Error()
		return row
	}
	resp.Body.Close()

	row.message = fmt.Sprintf("%s responded %d", cfg.ExecApiUrl, resp.StatusCode)
	if cfg.ExecApiToken == "" {
		row.health = healthWarning
		row.message += ", EXEC_API_TOKEN is not set"
	}
	return row
}

func checkDatabase(ctx context.Context, cfg *environment.Config) feedbackRow {
	row := feedbackRow{unit: "database"}
	if cfg.DatabaseUrl == "" {
		row.health = healthWarning
		row.message = "DATABASE_URL is not set, jobs are kept in memory only"
		return row
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	st, err := pgstore.Open(ctx, cfg.DatabaseUrl)
	if err != nil {
		row.health = healthError
		row.message = err.Error()
		return row
	}
	defer st.Close()
	row.message = "connected"
	return row
}

func checkCacheDir(cfg *environment.Config) feedbackRow {
	row := feedbackRow{unit: "artifact cache"}
	dir := filepath.Join(cfg.CacheDir, "artifacts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		row.health = healthError
		row.message = err.Error()
		return row
	}
	f, err := os.CreateTemp(dir, "health-*")
	if err != nil {
		row.health = healthError
		row.message = fmt.Sprintf("%s is not writable: %v", dir, err)
		return row
	}
	f.Close()
	os.Remove(f.Name())
	row.message = dir
	return row
}

func checkNats(cfg *environment.Config) feedbackRow {
	row := feedbackRow{unit: "nats"}
	if cfg.NatsUrl == "" {
		row.message = "disabled"
		return row
	}
	nc, err := nats.Connect(cfg.NatsUrl, nats.Name("runtrack-health"), nats.Timeout(healthTimeout))
	if err != nil {
		row.health = healthError
		row.message = err.Error()
		return row
	}
	nc.Close()
	row.message = fmt.Sprintf("connected, subject %s.*", cfg.NatsSubject)
	return row
}

func checkSqs(ctx context.Context, cfg *environment.Config) feedbackRow {
	row := feedbackRow{unit: "sqs"}
	if cfg.SqsQueueUrl == "" {
		row.message = "disabled"
		return row
	}
	if _, err := sqsnotif.NewFromDefaultConfig(ctx, cfg.AwsRegion, cfg.SqsQueueUrl); err != nil {
		row.health = healthError
		row.message = err.Error()
		return row
	}
	row.message = fmt.Sprintf("aws config loaded for %s", cfg.AwsRegion)
	return row
}

func outputFeedback(w io.Writer, rows []feedbackRow) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Unit", "Health", "Message"})
	for _, row := range rows {
		code := ""
		switch row.health {
		case healthOK:
			code = "OKAY"
		case healthWarning:
			code = "WARN"
		case healthError:
			code = "ERROR"
		}
		t.AppendRow(table.Row{row.unit, code, row.message})
	}
	t.SetStyle(table.StyleColoredDark)
	healthColor := text.Transformer(func(v interface{}) string {
		switch v.(string) {
		case "OKAY":
			return text.FgHiGreen.Sprint(v)
		case "WARN":
			return text.FgHiYellow.Sprint(v)
		case "ERROR":
			return text.FgHiRed.Sprint(v)
		}
		return ""
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{
			Name:        "Health",
			Transformer: healthColor,
			Align:       text.AlignCenter,
		},
	})
	t.Render()
}
