package tagsync

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// GitRemote drives the git binary in a local checkout. Tag mutation and
// pushing are external collaborator invocations, so shelling out keeps
// the contract as narrow as the hosting side's.
type GitRemote struct {
	// Dir is the repository checkout the commands run in.
	Dir string
	// Remote is the push target, "origin" when empty.
	Remote string
}

func (g *GitRemote) remoteName() string {
	if g.Remote == "" {
		return "origin"
	}
	return g.Remote
}

func (g *GitRemote) git(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ForceTag moves or creates the tag at the commit.
func (g *GitRemote) ForceTag(ctx context.Context, name, commit string) error {
	return g.git(ctx, "tag", "--force", name, commit)
}

// PushTags force-pushes all named tags in a single push.
func (g *GitRemote) PushTags(ctx context.Context, names ...string) error {
	args := append([]string{"push", "--force", g.remoteName()}, names...)
	return g.git(ctx, args...)
}

var _ Remote = (*GitRemote)(nil)
