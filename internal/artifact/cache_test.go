package artifact_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/programme-lv/runtrack/internal/artifact"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingFetcher struct {
	calls   atomic.Int32
	data    map[string][]byte
	err     error
	release chan struct{}
}

func (f *countingFetcher) Artifact(ctx context.Context, id string) ([]byte, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	d, ok := f.data[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return d, nil
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCache(t *testing.T, dir string, f artifact.Fetcher) *artifact.Cache {
	t.Helper()
	c, err := artifact.New(dir, f, quietLog())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGet_CachesOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := &countingFetcher{data: map[string][]byte{"a-out": []byte("hello\n")}}

	c := newCache(t, dir, f)
	data, err := c.Get(ctx, "a-out")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	data, err = c.Get(ctx, "a-out")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
	assert.Equal(t, int32(1), f.calls.Load())

	// survives a restart
	again := newCache(t, dir, f)
	data, err = again.Get(ctx, "a-out")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
	assert.Equal(t, int32(1), f.calls.Load())

	files, err := filepath.Glob(filepath.Join(dir, "artifacts", "*.zst"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestGet_CoalescesConcurrentDownloads(t *testing.T) {
	f := &countingFetcher{
		data:    map[string][]byte{"a-bin": []byte("ELF")},
		release: make(chan struct{}),
	}
	c := newCache(t, t.TempDir(), f)

	var wg sync.WaitGroup
	results := make([][]byte, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := c.Get(context.Background(), "a-bin")
			assert.NoError(t, err)
			results[i] = data
		}()
	}
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, r := range results {
		assert.Equal(t, "ELF", string(r))
	}
}

func TestGet_FetchErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	f := &countingFetcher{err: errors.New("exec api down")}
	c := newCache(t, t.TempDir(), f)

	_, err := c.Get(ctx, "a-log")
	require.Error(t, err)

	f.err = nil
	f.data = map[string][]byte{"a-log": []byte("ok")}
	data, err := c.Get(ctx, "a-log")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestGet_CorruptEntryIsRefetched(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f := &countingFetcher{data: map[string][]byte{"a-err": []byte("boom")}}
	c := newCache(t, dir, f)

	_, err := c.Get(ctx, "a-err")
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "artifacts", "*.zst"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.NoError(t, os.WriteFile(files[0], []byte("not zstd"), 0o644))

	data, err := c.Get(ctx, "a-err")
	require.NoError(t, err)
	assert.Equal(t, "boom", string(data))
	assert.Equal(t, int32(2), f.calls.Load())
}
