package artifact

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/Nr18/shipline/internal/ctxlog"
)

// FSStore persists a run's artifacts under <root>/<runID> so they outlive
// the process for debugging. Retention is bounded: Sweep removes run
// directories older than the retention window and has no effect on
// same-run correctness.
type FSStore struct {
	root  string
	runID string
}

// NewFSStore creates (if needed) the run directory for runID under root.
func NewFSStore(root, runID string) (*FSStore, error) {
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &FSStore{root: root, runID: runID}, nil
}

// slotDir maps a key to a single directory under the run directory. The
// whole key is flattened into one name so that keys sharing a slot never
// become path prefixes of each other: PathEscape encodes "," inside the
// components, which keeps the separator unambiguous.
func (s *FSStore) slotDir(key Key) string {
	name := url.PathEscape(key.Slot) + "," + url.PathEscape(key.Matrix) + "," + url.PathEscape(key.CallSite)
	return filepath.Join(s.root, s.runID, name)
}

// Put writes each file into the slot directory. Creating the directory is
// the write-once seal: Mkdir either claims the key or reports it taken,
// so two concurrent writers cannot both succeed.
func (s *FSStore) Put(_ context.Context, key Key, files []File) error {
	dir := s.slotDir(key)
	if err := os.Mkdir(dir, 0o755); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("slot %q (matrix %q, call site %q): %w", key.Slot, key.Matrix, key.CallSite, ErrSlotSealed)
		}
		return fmt.Errorf("failed to create slot directory: %w", err)
	}
	for _, f := range files {
		// File names may contain separators ("target/release/app");
		// escaping the whole name keeps them as flat entries.
		if err := os.WriteFile(filepath.Join(dir, url.PathEscape(f.Name)), f.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write artifact %q: %w", f.Name, err)
		}
	}
	return nil
}

// Get reads back every file in the slot directory, or ErrNotFound.
func (s *FSStore) Get(_ context.Context, key Key) ([]File, error) {
	dir := s.slotDir(key)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("slot %q (matrix %q, call site %q): %w", key.Slot, key.Matrix, key.CallSite, ErrNotFound)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, err := url.PathUnescape(e.Name())
		if err != nil {
			return nil, fmt.Errorf("unreadable artifact entry %q: %w", e.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read artifact %q: %w", name, err)
		}
		files = append(files, File{Name: name, Data: data})
	}
	return files, nil
}

// Sweep deletes run directories under root whose last modification is
// older than retention. Failures are logged and ignored: retention is a
// debugging convenience, not a correctness concern.
func Sweep(ctx context.Context, root string, retention time.Duration) {
	logger := ctxlog.FromContext(ctx)
	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Debug("Artifact retention sweep skipped.", "root", root, "error", err)
		return
	}

	cutoff := time.Now().Add(-retention)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn("Failed to remove expired run artifacts.", "dir", dir, "error", err)
			continue
		}
		logger.Info("Removed expired run artifacts.", "dir", dir)
	}
}
