// Package cachestep restores and saves advisory build caches. Every
// failure here is logged and swallowed: a broken cache costs build time,
// never a run.
package cachestep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/cache"
	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Action string `hcl:"action"`
	// Lockfile is the dependency manifest whose digest keys the entry,
	// relative to the workdir.
	Lockfile string `hcl:"lockfile"`
	// Path is the directory to cache, relative to the workdir.
	Path string `hcl:"path"`
	// Platform overrides the key platform; defaults to the instance's
	// matrix identity.
	Platform string `hcl:"platform,optional"`
}

// OnRunCache is the handler for the 'cache' step type.
func OnRunCache(ctx context.Context, sc *registry.StepContext, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx).With("path", in.Path)

	platform := in.Platform
	if platform == "" {
		platform = sc.MatrixKey()
	}

	lockfile, err := os.ReadFile(filepath.Join(sc.Workdir, in.Lockfile))
	if err != nil {
		return cty.NilVal, fmt.Errorf("read lockfile %q: %w", in.Lockfile, err)
	}
	key := cache.Key(platform, lockfile)

	switch in.Action {
	case "restore":
		data, ok, err := sc.Cache.Restore(ctx, key)
		if err != nil {
			logger.Warn("Cache restore failed, continuing cold", "error", err)
			return hitResult(false), nil
		}
		if !ok {
			logger.Info("Cache miss", "key", key)
			return hitResult(false), nil
		}
		if err := unpackDir(data, filepath.Join(sc.Workdir, in.Path)); err != nil {
			logger.Warn("Cache entry unusable, continuing cold", "error", err)
			return hitResult(false), nil
		}
		logger.Info("Cache restored", "key", key)
		return hitResult(true), nil

	case "save":
		data, err := packDir(filepath.Join(sc.Workdir, in.Path))
		if err != nil {
			logger.Warn("Cache pack failed, skipping save", "error", err)
			return hitResult(false), nil
		}
		if err := sc.Cache.Save(ctx, key, data); err != nil {
			logger.Warn("Cache save failed", "error", err)
		} else {
			logger.Info("Cache saved", "key", key, "bytes", len(data))
		}
		return hitResult(false), nil

	default:
		return cty.NilVal, fmt.Errorf("unknown cache action %q", in.Action)
	}
}

func hitResult(hit bool) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"hit": cty.BoolVal(hit),
	})
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("cache", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunCache,
	})
}
