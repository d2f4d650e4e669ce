// Package artifact caches immutable exec API artifacts on disk.
package artifact

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/singleflight"
)

// Fetcher downloads an artifact by id. execapi.Client satisfies it.
type Fetcher interface {
	Artifact(ctx context.Context, id string) ([]byte, error)
}

// Cache stores artifacts zstd compressed under <dir>/artifacts. Artifacts
// never change once created, so entries are never invalidated.
type Cache struct {
	fileDirectory string
	tmpDirectory  string
	fetch         Fetcher
	log           *slog.Logger

	group singleflight.Group
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

func New(dir string, fetch Fetcher, log *slog.Logger) (*Cache, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Cache{
		fileDirectory: filepath.Join(dir, "artifacts"),
		tmpDirectory:  filepath.Join(dir, "tmp"),
		fetch:         fetch,
		log:           log,
	}
	if err := os.MkdirAll(c.fileDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.MkdirAll(c.tmpDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tmp directory: %w", err)
	}

	var err error
	c.enc, err = zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	c.dec, err = zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return c, nil
}

// Close releases the codec resources.
func (c *Cache) Close() error {
	c.dec.Close()
	return c.enc.Close()
}

func (c *Cache) path(id string) string {
	sum := sha256.Sum256([]byte(id))
	return filepath.Join(c.fileDirectory, hex.EncodeToString(sum[:])+".zst")
}

// Get returns the artifact, downloading it at most once per id even when
// called concurrently.
func (c *Cache) Get(ctx context.Context, id string) ([]byte, error) {
	path := c.path(id)
	if data, ok := c.read(path); ok {
		return data, nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		if data, ok := c.read(path); ok {
			return data, nil
		}
		c.log.Debug("downloading artifact", "artifact", id)
		data, err := c.fetch.Artifact(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch artifact %s: %w", id, err)
		}
		if err := c.write(path, data); err != nil {
			// still usable, just not cached
			c.log.Warn("failed to cache artifact", "artifact", id, "err", err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return bytes.Clone(v.([]byte)), nil
}

func (c *Cache) read(path string) ([]byte, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn("failed to read cached artifact", "path", path, "err", err)
		}
		return nil, false
	}
	data, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		c.log.Warn("dropping corrupt cached artifact", "path", path, "err", err)
		_ = os.Remove(path)
		return nil, false
	}
	return data, true
}

func (c *Cache) write(path string, data []byte) error {
	tmp, err := os.CreateTemp(c.tmpDirectory, "artifact-*")
	if err != nil {
		return fmt.Errorf("failed to create tmp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(c.enc.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write tmp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close tmp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move artifact to cache: %w", err)
	}
	return nil
}
