// Package tagstep invokes the tag synchronizer from a pipeline.
package tagstep

import (
	"context"
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	// Enabled lets a pipeline keep the job wired but dormant while the
	// tagging scheme is being rolled out.
	Enabled *bool `hcl:"enabled,optional"`
}

// OnRunTagSync is the handler for the 'tag_sync' step type.
func OnRunTagSync(ctx context.Context, sc *registry.StepContext, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	if in.Enabled != nil && !*in.Enabled {
		logger.Info("Tag sync disabled, skipping")
		return cty.ObjectVal(map[string]cty.Value{
			"synced":  cty.BoolVal(false),
			"version": cty.StringVal(""),
		}), nil
	}
	if sc.TagSync == nil {
		return cty.NilVal, fmt.Errorf("tag sync is not configured for this daemon")
	}

	v, err := sc.TagSync.Sync(ctx, sc.Run.Commit)
	if err != nil {
		return cty.NilVal, err
	}
	logger.Info("Tags synchronized", "version", v.String(), "commit", sc.Run.Commit)

	return cty.ObjectVal(map[string]cty.Value{
		"synced":  cty.BoolVal(true),
		"version": cty.StringVal(v.String()),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("tag_sync", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunTagSync,
	})
}
