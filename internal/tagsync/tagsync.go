// Package tagsync force-publishes the floating version tags derived from
// the project manifest: vMAJOR.MINOR.PATCH, vMAJOR.MINOR, and vMAJOR all
// move to the released commit.
//
// The force-push is intentionally destructive and idempotent: re-running
// against the same commit and version changes nothing, and a version bump
// moves the floating tags forward. Because a duplicate concurrent
// invocation could race on the force-push, the component must only run
// once per released commit; the single-writer-per-release assumption is
// documented rather than enforced with distributed locking.
package tagsync

import (
	"context"
	"fmt"

	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/version"
)

// Remote is the narrow contract to the tag store of the hosting remote.
type Remote interface {
	// ForceTag creates or moves a tag to point at the commit.
	ForceTag(ctx context.Context, name, commit string) error
	// PushTags force-pushes the named tags in a single push operation.
	PushTags(ctx context.Context, names ...string) error
}

// Synchronizer derives the version triple from the manifest and syncs
// the three tracking tags.
type Synchronizer struct {
	remote       Remote
	manifestPath string
}

// New returns a Synchronizer reading the manifest at manifestPath.
func New(remote Remote, manifestPath string) *Synchronizer {
	return &Synchronizer{remote: remote, manifestPath: manifestPath}
}

// Sync recomputes the version from the manifest and force-updates the
// three tags at the given commit, then pushes them in one operation. The
// manifest is re-read on every call so the tags always reflect the exact
// source tree being released, never a cached value.
func (s *Synchronizer) Sync(ctx context.Context, commit string) (version.Version, error) {
	logger := ctxlog.FromContext(ctx)

	v, err := version.ParseManifestFile(s.manifestPath)
	if err != nil {
		return version.Version{}, err
	}

	tags := v.Tags()
	for _, tag := range tags {
		if err := s.remote.ForceTag(ctx, tag, commit); err != nil {
			return version.Version{}, fmt.Errorf("failed to set tag %q: %w", tag, err)
		}
	}
	if err := s.remote.PushTags(ctx, tags...); err != nil {
		return version.Version{}, fmt.Errorf("failed to push tags: %w", err)
	}

	logger.Info("Version tags synchronized.", "version", v.String(), "commit", commit, "tags", tags)
	return v, nil
}
