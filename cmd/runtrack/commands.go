package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/programme-lv/runtrack/api"
	"github.com/programme-lv/runtrack/internal/job"
	"github.com/programme-lv/runtrack/internal/respbuilder"
	"github.com/programme-lv/runtrack/internal/store/pgstore"
	"github.com/programme-lv/runtrack/internal/tracker"
	"github.com/programme-lv/runtrack/internal/utils"
	"github.com/urfave/cli/v3"
)

func requireArg(cmd *cli.Command, name string) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one %s argument", name)
	}
	return cmd.Args().First(), nil
}

func (a *app) submitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "submit a source file for compilation",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Usage: "user the submission belongs to", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path, err := requireArg(cmd, "FILE")
			if err != nil {
				return err
			}
			source, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read source: %w", err)
			}
			t, err := a.openTracker(ctx, false)
			if err != nil {
				return err
			}
			j, err := t.CreateSubmission(ctx, source, cmd.String("owner"))
			if err != nil {
				return err
			}
			fmt.Println(j.ID)
			return nil
		},
	}
}

func (a *app) runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute the binary of a compiled submission",
		ArgsUsage: "SUBMISSION_ID",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := requireArg(cmd, "SUBMISSION_ID")
			if err != nil {
				return err
			}
			t, err := a.openTracker(ctx, false)
			if err != nil {
				return err
			}
			r, err := t.CreateRun(ctx, id)
			if errors.Is(err, tracker.ErrPrecondition) {
				return cli.Exit(err.Error(), 2)
			}
			if err != nil {
				return err
			}
			fmt.Println(r.ID)
			return nil
		},
	}
}

func (a *app) refreshCommand() *cli.Command {
	return &cli.Command{
		Name:      "refresh",
		Usage:     "poll the exec API for a job",
		ArgsUsage: "JOB_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "poll even if the job is not due"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := requireArg(cmd, "JOB_ID")
			if err != nil {
				return err
			}
			t, err := a.openTracker(ctx, false)
			if err != nil {
				return err
			}
			j, err := t.Refresh(ctx, id, cmd.Bool("force"))
			if err != nil {
				return err
			}
			status := job.DisplayStatus(j)
			fmt.Printf("%s %s %s\n", j.ID, status, status.Label())
			return nil
		},
	}
}

func (a *app) statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show a job and, for submissions, its runs",
		ArgsUsage: "JOB_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := requireArg(cmd, "JOB_ID")
			if err != nil {
				return err
			}
			t, err := a.openTracker(ctx, false)
			if err != nil {
				return err
			}
			j, err := t.Refresh(ctx, id, false)
			if err != nil {
				return err
			}
			var runs []*job.Job
			if j.Kind == job.KindSubmission {
				if runs, err = t.ListRuns(ctx, j.ID); err != nil {
					return err
				}
			}

			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if j.Kind == job.KindSubmission {
					return enc.Encode(respbuilder.Submission(j, runs))
				}
				return enc.Encode(respbuilder.Job(j))
			}

			printJob(os.Stdout, respbuilder.Job(j))
			printPreviews(ctx, t, j)
			for _, r := range runs {
				fmt.Println()
				printJob(os.Stdout, respbuilder.Job(r))
			}
			return nil
		},
	}
}

func printJob(w io.Writer, v api.JobView) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendRow(table.Row{"id", v.ID})
	t.AppendRow(table.Row{"kind", v.Kind})
	t.AppendRow(table.Row{"external id", v.ExternalID})
	t.AppendRow(table.Row{"status", fmt.Sprintf("%s (%s)", v.Status, v.StatusLabel)})
	t.AppendRow(table.Row{"phase", v.Phase})
	if v.NextCheckAt != nil {
		t.AppendRow(table.Row{"next check", *v.NextCheckAt})
	}
	if v.Attempts > 0 {
		t.AppendRow(table.Row{"attempts", v.Attempts})
		t.AppendRow(table.Row{"last error", v.LastError})
	}
	if d := v.RuntimeData; d != nil {
		t.AppendSeparator()
		t.AppendRow(table.Row{"exit", fmt.Sprintf("%s %d", d.ExitKind, d.ExitCode)})
		t.AppendRow(table.Row{"verdict", d.Verdict})
		t.AppendRow(table.Row{"time", fmt.Sprintf("cpu %dms (user %dms, sys %dms), wall %dms",
			d.CpuMillis, d.UserMillis, d.SystemMillis, d.WallMillis)})
		t.AppendRow(table.Row{"memory", fmt.Sprintf("%d KiB", d.MemoryKiBytes)})
	}
	t.SetStyle(table.StyleLight)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: text.Colors{text.Bold}},
	})
	t.Render()
}

// printPreviews shows the beginning of the textual artifacts of a finished job.
func printPreviews(ctx context.Context, t *tracker.Tracker, j *job.Job) {
	var previews [][2]string
	if c := j.Compilation(); c != nil && job.DisplayStatus(j) == job.StatusCompilationError {
		previews = append(previews, [2]string{"compiler output", c.ErrorLogID})
	}
	if r := j.Run(); r != nil {
		previews = append(previews, [2]string{"stdout", r.StdoutID}, [2]string{"stderr", r.StderrID})
	}
	for _, p := range previews {
		data, err := t.Artifact(ctx, p[1])
		if err != nil {
			fmt.Printf("\n%s: unavailable (%v)\n", p[0], err)
			continue
		}
		if len(data) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n%s\n", p[0],
			utils.TrimStrToRect(string(data), api.MaxPreviewHeight, api.MaxPreviewWidth))
	}
}

func (a *app) listCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list a user's submissions, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "owner", Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			t, err := a.openTracker(ctx, false)
			if err != nil {
				return err
			}
			subs, err := t.ListSubmissions(ctx, cmd.String("owner"))
			if err != nil {
				return err
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"ID", "Created", "Status", "Runs"})
			for _, s := range subs {
				runs, err := t.ListRuns(ctx, s.ID)
				if err != nil {
					return err
				}
				status := job.DisplayStatus(s)
				tw.AppendRow(table.Row{
					s.ID,
					s.CreatedAt.Local().Format(time.DateTime),
					fmt.Sprintf("%s %s", status, status.Label()),
					len(runs),
				})
			}
			tw.SetStyle(table.StyleLight)
			tw.Render()
			return nil
		},
	}
}

func (a *app) sweepCommand() *cli.Command {
	return &cli.Command{
		Name:  "sweep",
		Usage: "refresh every due job once",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			t, err := a.openTracker(ctx, true)
			if err != nil {
				return err
			}
			n, err := t.RefreshDue(ctx)
			if err != nil {
				return err
			}
			a.log.Info("sweep done", "due", n)
			return nil
		},
	}
}

func (a *app) watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "keep refreshing due jobs until interrupted",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()
			t, err := a.openTracker(ctx, true)
			if err != nil {
				return err
			}
			return t.Run(ctx)
		},
	}
}

func (a *app) artifactCommand() *cli.Command {
	return &cli.Command{
		Name:      "artifact",
		Usage:     "print an artifact (source, log, stdout, stderr)",
		ArgsUsage: "ARTIFACT_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "preview", Usage: "print only the top left corner"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := requireArg(cmd, "ARTIFACT_ID")
			if err != nil {
				return err
			}
			t, err := a.openTracker(ctx, false)
			if err != nil {
				return err
			}
			data, err := t.Artifact(ctx, id)
			if err != nil {
				return err
			}
			if cmd.Bool("preview") {
				_, err = fmt.Println(utils.TrimStrToRect(string(data), api.MaxPreviewHeight, api.MaxPreviewWidth))
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func (a *app) migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "create the jobs table",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if a.cfg.DatabaseUrl == "" {
				return errors.New("DATABASE_URL is not set")
			}
			st, err := pgstore.Open(ctx, a.cfg.DatabaseUrl)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.Migrate(ctx); err != nil {
				return err
			}
			a.log.Info("jobs table is up to date")
			return nil
		},
	}
}
