package plan

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/run"
)

// EvalContext builds the HCL evaluation context visible to a job
// instance's gate conditions and step arguments: the run identity under
// `run`, repository variables under `vars`, the instance's matrix values
// under `matrix`, bound template inputs under `input`, and prior step
// outputs under `step`. Secrets are deliberately absent: they reach
// collaborators only through the scoped process environment.
func EvalContext(r *run.Run, inst *Instance, stepOutputs map[string]cty.Value) *hcl.EvalContext {
	vars := map[string]cty.Value{
		"run":    runValue(r),
		"vars":   stringMapValue(r.Vars()),
		"matrix": stringMapValue(inst.Matrix),
	}
	if len(inst.Inputs) > 0 {
		vars["input"] = cty.ObjectVal(inst.Inputs)
	} else {
		vars["input"] = cty.EmptyObjectVal
	}
	if len(stepOutputs) > 0 {
		vars["step"] = cty.ObjectVal(stepOutputs)
	}
	return &hcl.EvalContext{Variables: vars}
}

// planEvalContext is the reduced context available while expanding a
// template call: matrix values are known, step outputs are not.
func planEvalContext(r *run.Run, combo map[string]string) *hcl.EvalContext {
	return &hcl.EvalContext{Variables: map[string]cty.Value{
		"run":    runValue(r),
		"vars":   stringMapValue(r.Vars()),
		"matrix": stringMapValue(combo),
	}}
}

func runValue(r *run.Run) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"id":        cty.StringVal(r.ID),
		"kind":      cty.StringVal(string(r.Kind)),
		"repo":      cty.StringVal(r.Repo),
		"ref":       cty.StringVal(r.Ref),
		"short_ref": cty.StringVal(r.ShortRef()),
		"commit":    cty.StringVal(r.Commit),
	})
}

func stringMapValue(m map[string]string) cty.Value {
	if len(m) == 0 {
		return cty.EmptyObjectVal
	}
	vals := make(map[string]cty.Value, len(m))
	for k, v := range m {
		vals[k] = cty.StringVal(v)
	}
	return cty.ObjectVal(vals)
}
