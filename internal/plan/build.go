package plan

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/Nr18/shipline/internal/config"
	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/registry"
	"github.com/Nr18/shipline/internal/run"
)

// Build constructs the executable graph for a run. Pass structure:
// instance creation (with matrix and template expansion), dependency
// linking, step type validation, cycle detection.
func Build(ctx context.Context, model *config.Model, reg *registry.Registry, r *run.Run) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	pipeline, err := SelectPipeline(model, r)
	if err != nil {
		return nil, err
	}
	logger.Debug("Selected entry pipeline.", "pipeline", pipeline.Name, "trigger", r.Kind)

	graph := &Graph{Pipeline: pipeline.Name, Instances: make(map[string]*Instance)}

	for _, job := range pipeline.Jobs {
		if err := expandJob(graph, model, job, r); err != nil {
			return nil, fmt.Errorf("job %q: %w", job.Name, err)
		}
	}
	logger.Debug("Instance expansion complete.", "instances", len(graph.Instances))

	if err := linkDependencies(graph, pipeline, model); err != nil {
		return nil, err
	}

	if err := validateSteps(graph, reg); err != nil {
		return nil, err
	}

	if err := validateSecrets(graph, r); err != nil {
		return nil, err
	}

	if err := detectCycles(graph); err != nil {
		return nil, fmt.Errorf("invalid job graph: %w", err)
	}

	logger.Debug("Plan construction successful.", "pipeline", pipeline.Name)
	return graph, nil
}

// expandJob creates the instances for one pipeline-level job: one per
// matrix combination, times one per template job when the job is a call.
func expandJob(graph *Graph, model *config.Model, job *config.Job, r *run.Run) error {
	for _, combo := range matrixCombos(job.Matrix) {
		if job.Call == nil {
			inst := newInstance(instanceID(job.Name, combo, ""), job.Name, "", job, combo)
			graph.Instances[inst.ID] = inst
			continue
		}

		tpl := model.Templates[job.Call.Template]
		if tpl == nil {
			return fmt.Errorf("unknown template %q", job.Call.Template)
		}
		inputs, err := bindInputs(tpl, job.Call.With, planEvalContext(r, combo))
		if err != nil {
			return err
		}

		for _, tj := range tpl.Jobs {
			inst := newInstance(instanceID(job.Name, combo, tj.Name), job.Name, job.Name, tj, combo)
			inst.Inputs = inputs
			// The call site's own declarations widen the spliced job's:
			// its gate applies to the whole expansion, its secret grants
			// and strictness are inherited.
			if job.When != nil {
				inst.Whens = append(inst.Whens, job.When)
			}
			inst.Secrets = mergeNames(job.Secrets, tj.Secrets)
			inst.InheritSecrets = job.InheritSecrets || tj.InheritSecrets
			inst.RequiresSuccess = job.RequiresSuccess || tj.RequiresSuccess
			if inst.Timeout == 0 {
				inst.Timeout = job.Timeout
			}
			graph.Instances[inst.ID] = inst
		}
	}
	return nil
}

func newInstance(id, group, callSite string, job *config.Job, combo map[string]string) *Instance {
	inst := &Instance{
		ID:              id,
		Group:           group,
		CallSite:        callSite,
		Steps:           job.Steps,
		Matrix:          combo,
		Secrets:         job.Secrets,
		InheritSecrets:  job.InheritSecrets,
		RequiresSuccess: job.RequiresSuccess,
		Timeout:         job.Timeout,
		Deps:            make(map[string]*Instance),
		Dependents:      make(map[string]*Instance),
	}
	if job.When != nil {
		inst.Whens = append(inst.Whens, job.When)
	}
	return inst
}

// bindInputs evaluates a template call's arguments and checks them
// against the template's typed input set. A missing required input or an
// unknown argument name is fatal.
func bindInputs(tpl *config.Template, with map[string]hcl.Expression, evalCtx *hcl.EvalContext) (map[string]cty.Value, error) {
	for name := range with {
		if _, ok := tpl.Inputs[name]; !ok {
			return nil, fmt.Errorf("template %q has no input %q", tpl.Name, name)
		}
	}

	inputs := make(map[string]cty.Value, len(tpl.Inputs))
	for name, def := range tpl.Inputs {
		expr, provided := with[name]
		if !provided {
			if def.Default != nil {
				inputs[name] = *def.Default
				continue
			}
			if def.Optional {
				inputs[name] = cty.NullVal(def.Type)
				continue
			}
			return nil, fmt.Errorf("template %q requires input %q", tpl.Name, name)
		}

		val, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("template %q, input %q: %w", tpl.Name, name, diags)
		}
		converted, err := convert.Convert(val, def.Type)
		if err != nil {
			return nil, fmt.Errorf("template %q, input %q: %w", tpl.Name, name, err)
		}
		inputs[name] = converted
	}
	return inputs, nil
}

// linkDependencies wires `needs` edges. A pipeline-level dependency on a
// job name waits for every instance of that job (all matrix values, all
// spliced template jobs). Template-internal dependencies resolve within
// the same call site and matrix combination.
func linkDependencies(graph *Graph, pipeline *config.Pipeline, model *config.Model) error {
	for _, job := range pipeline.Jobs {
		for _, needed := range job.Needs {
			if needed == job.Name {
				return fmt.Errorf("job %q depends on itself", job.Name)
			}
			upstream := graph.group(needed)
			if len(upstream) == 0 {
				return fmt.Errorf("job %q needs unknown job %q", job.Name, needed)
			}
			for _, to := range graph.group(job.Name) {
				for _, from := range upstream {
					link(from, to)
				}
			}
		}

		if job.Call == nil {
			continue
		}
		tpl := model.Templates[job.Call.Template]
		for _, tj := range tpl.Jobs {
			for _, needed := range tj.Needs {
				if needed == tj.Name {
					return fmt.Errorf("template job %q depends on itself", tj.Name)
				}
				for _, combo := range matrixCombos(job.Matrix) {
					from, ok := graph.Instances[instanceID(job.Name, combo, needed)]
					if !ok {
						return fmt.Errorf("template %q: job %q needs unknown job %q", tpl.Name, tj.Name, needed)
					}
					to := graph.Instances[instanceID(job.Name, combo, tj.Name)]
					link(from, to)
				}
			}
		}
	}
	return nil
}

func validateSteps(graph *Graph, reg *registry.Registry) error {
	for _, inst := range graph.Instances {
		for _, step := range inst.Steps {
			if _, ok := reg.Lookup(step.Uses); !ok {
				return fmt.Errorf("instance %q, step %q: unknown step type %q (registered: %s)",
					inst.ID, step.Name, step.Uses, strings.Join(reg.Types(), ", "))
			}
		}
	}
	return nil
}

// validateSecrets rejects jobs naming secrets the run does not hold, so
// a misdeclared job fails before anything executes.
func validateSecrets(graph *Graph, r *run.Run) error {
	for _, inst := range graph.Instances {
		if _, err := r.ScopedSecrets(inst.Secrets, false); err != nil {
			return fmt.Errorf("instance %q: %w", inst.ID, err)
		}
	}
	return nil
}

// matrixCombos returns every combination of axis values, in a
// deterministic order. A nil matrix yields one empty combination.
func matrixCombos(m *config.Matrix) []map[string]string {
	if m == nil || len(m.Axes) == 0 {
		return []map[string]string{{}}
	}

	axes := make([]string, 0, len(m.Axes))
	for axis := range m.Axes {
		axes = append(axes, axis)
	}
	sort.Strings(axes)

	combos := []map[string]string{{}}
	for _, axis := range axes {
		var next []map[string]string
		for _, base := range combos {
			for _, value := range m.Axes[axis] {
				combo := make(map[string]string, len(base)+1)
				for k, v := range base {
					combo[k] = v
				}
				combo[axis] = value
				next = append(next, combo)
			}
		}
		combos = next
	}
	return combos
}

// MatrixKey returns the canonical string identity of a matrix
// combination: sorted axis=value pairs joined with commas.
func MatrixKey(combo map[string]string) string {
	if len(combo) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(combo))
	for axis, value := range combo {
		pairs = append(pairs, axis+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// instanceID builds the unique instance identifier, e.g. "build",
// "build[os=ubuntu]", or "build[os=ubuntu]/compile" for template jobs.
func instanceID(jobName string, combo map[string]string, templateJob string) string {
	id := jobName
	if key := MatrixKey(combo); key != "" {
		id += "[" + key + "]"
	}
	if templateJob != "" {
		id += "/" + templateJob
	}
	return id
}

func mergeNames(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// detectCycles runs a depth-first search with temporary and permanent
// marks over the dependents relation; revisiting a temporary-marked
// instance means the graph has a cycle.
func detectCycles(graph *Graph) error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(inst *Instance) error
	visit = func(inst *Instance) error {
		if permanent[inst.ID] {
			return nil
		}
		if temporary[inst.ID] {
			return fmt.Errorf("cycle detected involving %q", inst.ID)
		}
		temporary[inst.ID] = true
		for _, dependent := range inst.Dependents {
			if err := visit(dependent); err != nil {
				return err
			}
		}
		delete(temporary, inst.ID)
		permanent[inst.ID] = true
		return nil
	}

	for _, inst := range graph.Instances {
		if !permanent[inst.ID] {
			if err := visit(inst); err != nil {
				return err
			}
		}
	}
	return nil
}
