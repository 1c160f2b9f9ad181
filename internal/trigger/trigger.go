// Package trigger maps forge webhook payloads to trigger events.
package trigger

import (
	"fmt"
	"strings"

	"github.com/Nr18/shipline/internal/run"
)

// Event is one normalized trigger event. Secrets and variables are not
// part of an event; the daemon attaches them when it creates the run.
type Event struct {
	Kind   run.TriggerKind
	Repo   string
	Ref    string
	Commit string
}

// ShortRef returns the ref without its refs/heads/ or refs/tags/ prefix.
func (e Event) ShortRef() string {
	ref := strings.TrimPrefix(e.Ref, "refs/heads/")
	return strings.TrimPrefix(ref, "refs/tags/")
}

// ClassifyPush splits a push ref into branch and tag pushes by prefix.
func ClassifyPush(ref string) (run.TriggerKind, error) {
	switch {
	case strings.HasPrefix(ref, "refs/heads/"):
		return run.TriggerPushBranch, nil
	case strings.HasPrefix(ref, "refs/tags/"):
		return run.TriggerPushTag, nil
	default:
		return "", fmt.Errorf("push ref %q is neither a branch nor a tag", ref)
	}
}
