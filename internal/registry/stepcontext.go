package registry

import (
	"sort"
	"strings"

	"github.com/Nr18/shipline/internal/artifact"
	"github.com/Nr18/shipline/internal/cache"
	"github.com/Nr18/shipline/internal/release"
	"github.com/Nr18/shipline/internal/run"
	"github.com/Nr18/shipline/internal/tagsync"
)

// StepContext carries the capability-scoped environment a step executes
// in. Handlers receive exactly what the owning job declared: the secret
// env holds only the job's requested secrets, and the shared services are
// the run-scoped instances.
type StepContext struct {
	Run *run.Run

	// InstanceID is the graph-unique identifier of the owning job
	// instance, e.g. "build[os=ubuntu]/compile".
	InstanceID string

	// Env is the merged run variables plus the job's scoped secrets.
	Env map[string]string

	// Matrix holds the instance's axis values, e.g. {"os": "ubuntu"}.
	Matrix map[string]string

	// CallSite is the name of the job that invoked the surrounding
	// template, or empty outside template expansions.
	CallSite string

	// Workdir is the instance's working directory for collaborator
	// invocations.
	Workdir string

	Artifacts artifact.Store
	Cache     cache.Cache
	Releases  *release.Composer
	TagSync   *tagsync.Synchronizer
}

// MatrixKey returns the canonical matrix identity for artifact slot
// addressing: axis=value pairs sorted by axis and joined with commas,
// empty for non-matrix instances.
func (sc *StepContext) MatrixKey() string {
	if len(sc.Matrix) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(sc.Matrix))
	for axis, value := range sc.Matrix {
		pairs = append(pairs, axis+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// ArtifactKey builds a slot key scoped to this instance's matrix identity
// and call site.
func (sc *StepContext) ArtifactKey(slot string) artifact.Key {
	return artifact.Key{Slot: slot, Matrix: sc.MatrixKey(), CallSite: sc.CallSite}
}
