package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/programme-lv/runtrack/internal/artifact"
	"github.com/programme-lv/runtrack/internal/environment"
	"github.com/programme-lv/runtrack/internal/execapi"
	"github.com/programme-lv/runtrack/internal/notify"
	"github.com/programme-lv/runtrack/internal/notify/natsnotif"
	"github.com/programme-lv/runtrack/internal/notify/sqsnotif"
	"github.com/programme-lv/runtrack/internal/notify/termnotif"
	"github.com/programme-lv/runtrack/internal/store"
	"github.com/programme-lv/runtrack/internal/store/memstore"
	"github.com/programme-lv/runtrack/internal/store/pgstore"
	"github.com/programme-lv/runtrack/internal/tracker"
	"github.com/urfave/cli/v3"
)

func main() {
	a := &app{}
	defer a.close()

	if err := a.command().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		a.close()
		os.Exit(1)
	}
}

type app struct {
	cfg     *environment.Config
	log     *slog.Logger
	closers []func() error
}

func (a *app) command() *cli.Command {
	return &cli.Command{
		Name:  "runtrack",
		Usage: "track compilations and runs on the exec API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Before: a.setup,
		Commands: []*cli.Command{
			a.submitCommand(),
			a.runCommand(),
			a.refreshCommand(),
			a.statusCommand(),
			a.listCommand(),
			a.sweepCommand(),
			a.watchCommand(),
			a.artifactCommand(),
			a.migrateCommand(),
			a.healthCommand(),
		},
	}
}

func (a *app) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := environment.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return ctx, err
	}

	a.cfg = cfg
	a.log = slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(a.log)
	return ctx, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("failed to close", "err", err)
		}
	}
	a.closers = nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	if a.cfg.DatabaseUrl == "" {
		a.log.Warn("DATABASE_URL is not set, jobs are kept in memory only")
		return memstore.New(), nil
	}
	st, err := pgstore.Open(ctx, a.cfg.DatabaseUrl)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)
	return st, nil
}

func (a *app) openNotifier(ctx context.Context, terminal bool) (notify.Notifier, error) {
	var notifiers notify.Multi
	if terminal {
		notifiers = append(notifiers, termnotif.New(os.Stdout))
	}
	if a.cfg.NatsUrl != "" {
		n, nc, err := natsnotif.Connect(a.cfg.NatsUrl, a.cfg.NatsSubject)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, nc.Drain)
		notifiers = append(notifiers, n)
	}
	if a.cfg.SqsQueueUrl != "" {
		n, err := sqsnotif.NewFromDefaultConfig(ctx, a.cfg.AwsRegion, a.cfg.SqsQueueUrl)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	return notifiers, nil
}

// newExecClient bounds every request, including the ones made outside
// TryUpdate, by the configured call timeout.
func newExecClient(cfg *environment.Config) *execapi.HTTPClient {
	hc := &http.Client{Timeout: cfg.Polling.CallTimeout.Duration}
	return execapi.NewHTTPClient(cfg.ExecApiUrl, cfg.ExecApiToken, hc)
}

// openTracker wires the tracker from configuration. Terminal notifications
// are printed only for long running commands.
func (a *app) openTracker(ctx context.Context, terminal bool) (*tracker.Tracker, error) {
	if a.cfg.ExecApiUrl == "" {
		return nil, errors.New("EXEC_API_URL is not set")
	}
	exec := newExecClient(a.cfg)

	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	notifier, err := a.openNotifier(ctx, terminal)
	if err != nil {
		return nil, err
	}
	cache, err := artifact.New(a.cfg.CacheDir, exec, a.log)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cache.Close)

	opts := tracker.Options{
		Policy:           a.cfg.Polling.Policy(),
		SweepInterval:    a.cfg.Sweep.Interval.Duration,
		SweepConcurrency: a.cfg.Sweep.Concurrency,
		SweepBatch:       a.cfg.Sweep.Batch,
	}
	return tracker.New(exec, st, notifier, cache, opts, a.log), nil
}
