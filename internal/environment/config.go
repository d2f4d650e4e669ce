package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/programme-lv/runtrack/internal/job"
)

const appName = "runtrack"

// Duration is a time.Duration written as "500ms" or "30s" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type PollingConfig struct {
	Interval    Duration `toml:"interval"`
	RetryBase   Duration `toml:"retry_base"`
	RetryMax    Duration `toml:"retry_max"`
	MaxAttempts int      `toml:"max_attempts"`
	CallTimeout Duration `toml:"call_timeout"`
}

func (p PollingConfig) Policy() job.Policy {
	return job.Policy{
		PollInterval: p.Interval.Duration,
		RetryBase:    p.RetryBase.Duration,
		RetryMax:     p.RetryMax.Duration,
		MaxAttempts:  p.MaxAttempts,
		CallTimeout:  p.CallTimeout.Duration,
	}
}

type SweepConfig struct {
	Interval    Duration `toml:"interval"`
	Concurrency int      `toml:"concurrency"`
	Batch       int      `toml:"batch"`
}

type Config struct {
	ExecApiUrl   string `toml:"exec_api_url"`
	ExecApiToken string `toml:"exec_api_token"`
	DatabaseUrl  string `toml:"database_url"`
	NatsUrl      string `toml:"nats_url"`
	NatsSubject  string `toml:"nats_subject"`
	SqsQueueUrl  string `toml:"sqs_queue_url"`
	AwsRegion    string `toml:"aws_region"`
	CacheDir     string `toml:"cache_dir"`
	LogLevel     string `toml:"log_level"`

	Polling PollingConfig `toml:"polling"`
	Sweep   SweepConfig   `toml:"sweep"`
}

func defaults() *Config {
	p := job.DefaultPolicy()
	return &Config{
		NatsSubject: appName + ".status",
		AwsRegion:   "eu-central-1",
		CacheDir:    filepath.Join(cacheHome(), appName),
		LogLevel:    "info",
		Polling: PollingConfig{
			Interval:    Duration{p.PollInterval},
			RetryBase:   Duration{p.RetryBase},
			RetryMax:    Duration{p.RetryMax},
			MaxAttempts: p.MaxAttempts,
			CallTimeout: Duration{p.CallTimeout},
		},
		Sweep: SweepConfig{
			Interval:    Duration{time.Second},
			Concurrency: 8,
			Batch:       100,
		},
	}
}

// Load reads configuration from, in increasing precedence: built-in
// defaults, the TOML file at path (or $RUNTRACK_CONFIG, or
// $XDG_CONFIG_HOME/runtrack/config.toml if present), and environment
// variables, which may come from a .env file in the working directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := defaults()

	explicit := path != ""
	if !explicit {
		if p := os.Getenv("RUNTRACK_CONFIG"); p != "" {
			path, explicit = p, true
		} else {
			path = filepath.Join(configHome(), appName, "config.toml")
		}
	}
	if err := cfg.readFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg.readEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) readEnv() {
	for key, dst := range map[string]*string{
		"EXEC_API_URL":   &c.ExecApiUrl,
		"EXEC_API_TOKEN": &c.ExecApiToken,
		"DATABASE_URL":   &c.DatabaseUrl,
		"NATS_URL":       &c.NatsUrl,
		"NATS_SUBJECT":   &c.NatsSubject,
		"SQS_QUEUE_URL":  &c.SqsQueueUrl,
		"AWS_REGION":     &c.AwsRegion,
		"CACHE_DIR":      &c.CacheDir,
		"LOG_LEVEL":      &c.LogLevel,
	} {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Polling.Interval.Duration <= 0 {
		errs = append(errs, errors.New("polling.interval must be positive"))
	}
	if c.Polling.RetryBase.Duration <= 0 {
		errs = append(errs, errors.New("polling.retry_base must be positive"))
	}
	if c.Polling.RetryMax.Duration < c.Polling.RetryBase.Duration {
		errs = append(errs, errors.New("polling.retry_max must not be below polling.retry_base"))
	}
	if c.Polling.MaxAttempts < 0 {
		errs = append(errs, errors.New("polling.max_attempts must not be negative"))
	}
	if c.Sweep.Interval.Duration <= 0 {
		errs = append(errs, errors.New("sweep.interval must be positive"))
	}
	if c.Sweep.Concurrency <= 0 {
		errs = append(errs, errors.New("sweep.concurrency must be positive"))
	}
	if c.Sweep.Batch <= 0 {
		errs = append(errs, errors.New("sweep.batch must be positive"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SlogLevel parses LogLevel ("debug", "info", "warn", "error").
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return l, nil
}
