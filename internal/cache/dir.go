package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// DirCache stores zstd-compressed entries as one file per key in a local
// directory.
type DirCache struct {
	root string
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// NewDirCache creates the cache directory if needed.
func NewDirCache(root string) (*DirCache, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	return &DirCache{root: root, enc: enc, dec: dec}, nil
}

// entryPath maps a key to its file. Keys are hex digests, so they are
// filesystem-safe as-is.
func (c *DirCache) entryPath(key string) string {
	return filepath.Join(c.root, key+".zst")
}

// Restore reads and decompresses the entry for key. A missing entry is a
// miss, not an error; a corrupt entry is reported as an error so the
// caller can log it, but is also a miss.
func (c *DirCache) Restore(_ context.Context, key string) ([]byte, bool, error) {
	compressed, err := os.ReadFile(c.entryPath(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}
	data, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt cache entry %q: %w", key, err)
	}
	return data, true, nil
}

// Save compresses and writes the entry. The write goes through a temp
// file and rename so a concurrent Restore never observes a partial entry.
func (c *DirCache) Save(_ context.Context, key string, data []byte) error {
	compressed := c.enc.EncodeAll(data, nil)
	tmp, err := os.CreateTemp(c.root, "entry-*")
	if err != nil {
		return fmt.Errorf("failed to stage cache entry: %w", err)
	}
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.entryPath(key))
}
