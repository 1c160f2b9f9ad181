// Package plan turns a loaded definition model plus a trigger event into
// an executable graph of job instances: the entry pipeline is selected,
// template calls are expanded, matrices are fanned out, and dependencies
// are linked and checked for cycles. Every error here is plan-time fatal:
// nothing has executed yet.
package plan

import (
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/config"
)

// Instance is one concrete, matrix-resolved execution of a job.
type Instance struct {
	// ID is unique within the graph, e.g. "build[os=ubuntu]/compile".
	ID string
	// Group is the pipeline-level job name this instance belongs to. A
	// dependency on that name waits for every instance in the group.
	Group string
	// CallSite names the job whose template call produced this instance,
	// or is empty for directly declared jobs.
	CallSite string

	Steps  []*config.Step
	Matrix map[string]string
	Inputs map[string]cty.Value

	// Whens are the gate conditions that must all hold for the instance
	// to run; any false condition skips it.
	Whens []hcl.Expression

	Secrets         []string
	InheritSecrets  bool
	RequiresSuccess bool
	Timeout         time.Duration

	Deps       map[string]*Instance
	Dependents map[string]*Instance
}

// Graph is the executable plan for one run.
type Graph struct {
	Pipeline  string
	Instances map[string]*Instance
}

// group returns all instances belonging to a pipeline-level job name.
func (g *Graph) group(name string) []*Instance {
	var out []*Instance
	for _, inst := range g.Instances {
		if inst.Group == name {
			out = append(out, inst)
		}
	}
	return out
}

// link records that `to` depends on `from`.
func link(from, to *Instance) {
	to.Deps[from.ID] = from
	from.Dependents[to.ID] = to
}
