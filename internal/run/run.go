// Package run models a single pipeline run: the trigger that started it,
// the repository and ref it operates on, and the secrets and variables
// scoped to it.
package run

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// TriggerKind identifies what kind of event started a run.
type TriggerKind string

const (
	TriggerPullRequest TriggerKind = "pull_request"
	TriggerPushBranch  TriggerKind = "push_branch"
	TriggerPushTag     TriggerKind = "push_tag"
)

// Run is one pipeline execution. It is created when a trigger event
// arrives and lives until every job instance reaches a terminal state.
type Run struct {
	ID      string
	Kind    TriggerKind
	Repo    string
	Ref     string
	Commit  string
	secrets map[string]string
	vars    map[string]string
}

// New creates a run for the given trigger event. Secrets and variables are
// copied so later mutation of the caller's maps cannot leak into the run.
func New(kind TriggerKind, repo, ref, commit string, secrets, vars map[string]string) *Run {
	r := &Run{
		ID:      uuid.NewString(),
		Kind:    kind,
		Repo:    repo,
		Ref:     ref,
		Commit:  commit,
		secrets: make(map[string]string, len(secrets)),
		vars:    make(map[string]string, len(vars)),
	}
	for k, v := range secrets {
		r.secrets[k] = v
	}
	for k, v := range vars {
		r.vars[k] = v
	}
	return r
}

// ShortRef returns the ref with its refs/heads/ or refs/tags/ prefix
// stripped, e.g. "v1.4.0" for "refs/tags/v1.4.0".
func (r *Run) ShortRef() string {
	ref := strings.TrimPrefix(r.Ref, "refs/heads/")
	return strings.TrimPrefix(ref, "refs/tags/")
}

// Vars returns a copy of the run-scoped variables.
func (r *Run) Vars() map[string]string {
	out := make(map[string]string, len(r.vars))
	for k, v := range r.vars {
		out[k] = v
	}
	return out
}

// SecretNames returns the sorted names of all run-scoped secrets, without
// exposing their values.
func (r *Run) SecretNames() []string {
	names := make([]string, 0, len(r.secrets))
	for k := range r.secrets {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ScopedSecrets builds the minimal secret set for a job. With inheritAll
// the full run-scoped set is returned; otherwise only the named secrets
// are included, and naming a secret the run does not hold is an error so
// that a misdeclared job fails at plan time instead of mid-execution.
func (r *Run) ScopedSecrets(names []string, inheritAll bool) (map[string]string, error) {
	out := make(map[string]string)
	if inheritAll {
		for k, v := range r.secrets {
			out[k] = v
		}
		return out, nil
	}
	for _, name := range names {
		v, ok := r.secrets[name]
		if !ok {
			return nil, fmt.Errorf("secret %q is not available to this run", name)
		}
		out[name] = v
	}
	return out, nil
}
