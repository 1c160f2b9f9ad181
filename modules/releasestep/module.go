// Package releasestep invokes the release composer from a pipeline.
package releasestep

import (
	"context"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/registry"
	"github.com/Nr18/shipline/internal/release"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Tag        string `hcl:"tag"`
	Title      string `hcl:"title,optional"`
	Notes      string `hcl:"notes,optional"`
	Draft      bool   `hcl:"draft,optional"`
	Prerelease bool   `hcl:"prerelease,optional"`
	// Assets maps artifact slots to published asset names. An empty name
	// keeps the stored file names.
	Assets map[string]string `hcl:"assets"`
	// Matrices maps a slot to the matrix identity of its producer, e.g.
	// {"binary" = "os=ubuntu"}, for slots filled by matrix instances.
	Matrices map[string]string `hcl:"matrices,optional"`
	// CallSites maps a slot to the producer's template call site, for
	// slots filled inside a template expansion.
	CallSites map[string]string `hcl:"call_sites,optional"`
}

// OnRunRelease is the handler for the 'release' step type.
func OnRunRelease(ctx context.Context, sc *registry.StepContext, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx).With("tag", in.Tag)

	title := in.Title
	if title == "" {
		title = in.Tag
	}

	// Deterministic asset order regardless of HCL map iteration.
	slots := make([]string, 0, len(in.Assets))
	for slot := range in.Assets {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	refs := make([]release.AssetRef, 0, len(slots))
	for _, slot := range slots {
		key := sc.ArtifactKey(slot)
		if m, ok := in.Matrices[slot]; ok {
			key.Matrix = m
		}
		if cs, ok := in.CallSites[slot]; ok {
			key.CallSite = cs
		}
		refs = append(refs, release.AssetRef{Key: key, Name: in.Assets[slot]})
	}

	rec := release.Record{
		Tag:        in.Tag,
		Title:      title,
		Notes:      in.Notes,
		Draft:      in.Draft,
		Prerelease: in.Prerelease,
	}
	if err := sc.Releases.Compose(ctx, rec, refs); err != nil {
		return cty.NilVal, err
	}
	logger.Info("Release composed", "assets", strings.Join(slots, ", "))

	return cty.ObjectVal(map[string]cty.Value{
		"tag": cty.StringVal(in.Tag),
	}), nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("release", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunRelease,
	})
}
