package environment_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/programme-lv/runtrack/internal/environment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the developer's own configuration out of the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	for _, key := range []string{
		"RUNTRACK_CONFIG", "EXEC_API_URL", "EXEC_API_TOKEN", "DATABASE_URL", "NATS_URL",
		"NATS_SUBJECT", "SQS_QUEUE_URL", "AWS_REGION", "CACHE_DIR", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := environment.Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cache", "runtrack"), cfg.CacheDir)
	assert.Equal(t, "runtrack.status", cfg.NatsSubject)
	assert.Equal(t, 500*time.Millisecond, cfg.Polling.Interval.Duration)
	assert.Equal(t, 30*time.Second, cfg.Polling.RetryMax.Duration)
	assert.Equal(t, 20, cfg.Polling.MaxAttempts)
	assert.Equal(t, 8, cfg.Sweep.Concurrency)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "runtrack.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
exec_api_url = "http://exec.local"
log_level = "debug"

[polling]
interval = "250ms"
retry_base = "1s"
retry_max = "1m"
max_attempts = 5
call_timeout = "3s"

[sweep]
interval = "2s"
concurrency = 4
batch = 50
`), 0o644))
	t.Setenv("EXEC_API_URL", "http://override.local")

	cfg, err := environment.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://override.local", cfg.ExecApiUrl)

	policy := cfg.Polling.Policy()
	assert.Equal(t, 250*time.Millisecond, policy.PollInterval)
	assert.Equal(t, time.Second, policy.RetryBase)
	assert.Equal(t, time.Minute, policy.RetryMax)
	assert.Equal(t, 5, policy.MaxAttempts)
	assert.Equal(t, 3*time.Second, policy.CallTimeout)
	assert.Equal(t, 2*time.Second, cfg.Sweep.Interval.Duration)
	assert.Equal(t, 50, cfg.Sweep.Batch)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.Unsetenv("EXEC_API_TOKEN"))
	t.Cleanup(func() { _ = os.Unsetenv("EXEC_API_TOKEN") })
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EXEC_API_TOKEN=from-dotenv\n"), 0o644))

	cfg, err := environment.Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.ExecApiToken)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	_, err := environment.Load(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)

	unknown := filepath.Join(dir, "unknown.toml")
	require.NoError(t, os.WriteFile(unknown, []byte("colour = \"blue\"\n"), 0o644))
	_, err = environment.Load(unknown)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("[sweep]\nconcurrency = 0\n"), 0o644))
	_, err = environment.Load(invalid)
	require.ErrorContains(t, err, "sweep.concurrency")

	t.Setenv("LOG_LEVEL", "loud")
	_, err = environment.Load("")
	require.ErrorContains(t, err, "invalid log level")
}
