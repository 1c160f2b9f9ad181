package hclcfg

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/typeexpr"
	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/config"
	"github.com/Nr18/shipline/internal/schema"
)

// translatePipeline converts the HCL-specific pipeline schema into the
// format-agnostic model.
func translatePipeline(p *schema.Pipeline) (*config.Pipeline, error) {
	out := &config.Pipeline{Name: p.Name}

	if p.On == nil {
		return nil, fmt.Errorf("pipeline %q has no `on` block", p.Name)
	}
	if p.On.PullRequest != nil {
		out.On = append(out.On, &config.TriggerRule{Event: "pull_request"})
	}
	for _, push := range p.On.Push {
		out.On = append(out.On, &config.TriggerRule{
			Event:    "push",
			Branches: push.Branches,
			Tags:     push.Tags,
		})
	}
	if len(out.On) == 0 {
		return nil, fmt.Errorf("pipeline %q declares no trigger rules", p.Name)
	}

	jobs, err := translateJobs(p.Name, p.Jobs)
	if err != nil {
		return nil, err
	}
	out.Jobs = jobs
	return out, nil
}

// translateTemplate converts a template block, resolving input type
// expressions into concrete cty types.
func translateTemplate(tpl *schema.Template) (*config.Template, error) {
	out := &config.Template{
		Name:   tpl.Name,
		Inputs: make(map[string]*config.InputDefinition, len(tpl.Inputs)),
	}

	for _, in := range tpl.Inputs {
		if _, ok := out.Inputs[in.Name]; ok {
			return nil, fmt.Errorf("template %q: duplicate input %q", tpl.Name, in.Name)
		}
		ty, diags := typeexpr.TypeConstraint(in.Type)
		if diags.HasErrors() {
			return nil, fmt.Errorf("template %q, input %q: invalid type: %w", tpl.Name, in.Name, diags)
		}
		out.Inputs[in.Name] = &config.InputDefinition{
			Name:     in.Name,
			Type:     ty,
			Default:  in.Default,
			Optional: in.Optional || in.Default != nil,
		}
	}

	jobs, err := translateJobs("template "+tpl.Name, tpl.Jobs)
	if err != nil {
		return nil, err
	}
	out.Jobs = jobs
	return out, nil
}

func translateJobs(owner string, jobs []*schema.Job) ([]*config.Job, error) {
	out := make([]*config.Job, 0, len(jobs))
	for _, j := range jobs {
		translated, err := translateJob(j)
		if err != nil {
			return nil, fmt.Errorf("%s, job %q: %w", owner, j.Name, err)
		}
		out = append(out, translated)
	}
	return out, nil
}

func translateJob(j *schema.Job) (*config.Job, error) {
	out := &config.Job{
		Name:            j.Name,
		Needs:           j.Needs,
		RequiresSuccess: j.RequiresSuccess,
		When:            j.When,
		Secrets:         j.Secrets,
		InheritSecrets:  j.InheritSecrets,
	}

	if j.Timeout != "" {
		d, err := time.ParseDuration(j.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", j.Timeout, err)
		}
		out.Timeout = d
	}

	if j.Matrix != nil {
		matrix, err := translateMatrix(j.Matrix)
		if err != nil {
			return nil, err
		}
		out.Matrix = matrix
	}

	if j.Call != nil {
		call := &config.TemplateCall{
			Template: j.Call.Template,
			With:     make(map[string]hcl.Expression),
		}
		if j.Call.With != nil {
			attrs, diags := j.Call.With.Body.JustAttributes()
			if diags.HasErrors() {
				return nil, fmt.Errorf("invalid `with` block: %w", diags)
			}
			for name, attr := range attrs {
				call.With[name] = attr.Expr
			}
		}
		out.Call = call
	}

	for _, s := range j.Steps {
		step := &config.Step{Name: s.Name, Uses: s.Uses}
		if s.Arguments != nil {
			step.Arguments = s.Arguments.Body
		}
		out.Steps = append(out.Steps, step)
	}
	return out, nil
}

// translateMatrix evaluates the matrix block's attributes. Axis values
// must be statically known lists of strings: matrix shape is plan-time
// data, not something that can depend on run context.
func translateMatrix(m *schema.MatrixBlock) (*config.Matrix, error) {
	attrs, diags := m.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("invalid matrix block: %w", diags)
	}

	matrix := &config.Matrix{Axes: make(map[string][]string, len(attrs))}
	for name, attr := range attrs {
		val, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("matrix axis %q must be a static list: %w", name, diags)
		}
		if !val.CanIterateElements() {
			return nil, fmt.Errorf("matrix axis %q is not a list", name)
		}
		var values []string
		for it := val.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if ev.Type() != cty.String {
				return nil, fmt.Errorf("matrix axis %q has a non-string value", name)
			}
			values = append(values, ev.AsString())
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("matrix axis %q is empty", name)
		}
		matrix.Axes[name] = values
	}
	if len(matrix.Axes) == 0 {
		return nil, fmt.Errorf("matrix block declares no axes")
	}
	return matrix, nil
}
