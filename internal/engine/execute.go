package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/plan"
	"github.com/Nr18/shipline/internal/registry"
)

// evaluateGates checks every gate condition attached to the instance
// against the run context. All conditions must hold; evaluation happens
// before the instance consumes any worker time on its steps.
func (e *Engine) evaluateGates(n *node) (bool, error) {
	if len(n.inst.Whens) == 0 {
		return true, nil
	}
	evalCtx := plan.EvalContext(e.run, n.inst, nil)
	for _, when := range n.inst.Whens {
		val, diags := when.Value(evalCtx)
		if diags.HasErrors() {
			return false, fmt.Errorf("gate condition: %w", diags)
		}
		boolVal, err := convert.Convert(val, cty.Bool)
		if err != nil {
			return false, fmt.Errorf("gate condition is not boolean: %w", err)
		}
		if boolVal.IsNull() || !boolVal.True() {
			return false, nil
		}
	}
	return true, nil
}

// execute runs an instance's steps strictly sequentially. The first step
// failure fails the instance; remaining steps never run.
func (e *Engine) execute(ctx context.Context, n *node) error {
	inst := n.inst
	logger := ctxlog.FromContext(ctx)

	if inst.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inst.Timeout)
		defer cancel()
	}

	secrets, err := e.run.ScopedSecrets(inst.Secrets, inst.InheritSecrets)
	if err != nil {
		return err
	}
	env := e.run.Vars()
	for k, v := range secrets {
		env[k] = v
	}

	workdir := filepath.Join(e.services.WorkRoot, url.PathEscape(inst.ID))
	if err := os.MkdirAll(workdir, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	sc := &registry.StepContext{
		Run:        e.run,
		InstanceID: inst.ID,
		Env:        env,
		Matrix:     inst.Matrix,
		CallSite:   inst.CallSite,
		Workdir:    workdir,
		Artifacts:  e.services.Artifacts,
		Cache:      e.services.Cache,
		Releases:   e.services.Releases,
		TagSync:    e.services.TagSync,
	}

	stepOutputs := make(map[string]cty.Value)
	for _, step := range inst.Steps {
		handler, ok := e.reg.Lookup(step.Uses)
		if !ok {
			// Plan validation guarantees this; reaching it is a bug.
			return fmt.Errorf("step %q: unknown step type %q", step.Name, step.Uses)
		}

		var input any
		if handler.NewInput != nil {
			input = handler.NewInput()
			if step.Arguments != nil {
				evalCtx := plan.EvalContext(e.run, inst, stepOutputs)
				if diags := gohcl.DecodeBody(step.Arguments, evalCtx, input); diags.HasErrors() {
					return fmt.Errorf("step %q: invalid arguments: %w", step.Name, diags)
				}
			}
		}

		logger.Debug("Step started.", "step", step.Name, "uses", step.Uses)
		output, err := handler.Fn(ctx, sc, input)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("step %q: timed out after %s: %w", step.Name, inst.Timeout, err)
			}
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
		if output.Type() != cty.NilType {
			stepOutputs[step.Name] = output
		}
		logger.Debug("Step succeeded.", "step", step.Name)
	}
	return nil
}
