// Package artifactstep moves files between a job instance's working
// directory and the run's artifact store.
package artifactstep

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/artifact"
	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Action string   `hcl:"action"`
	Slot   string   `hcl:"slot"`
	Paths  []string `hcl:"paths,optional"`
	// IfNoFilesFound controls upload behavior when no path matches:
	// "error" (default), "warn" or "ignore".
	IfNoFilesFound string `hcl:"if_no_files_found,optional"`
	// Dest is the download target directory, relative to the workdir.
	Dest string `hcl:"dest,optional"`
	// Matrix addresses another instance's slot on download, e.g.
	// {os = "ubuntu"} to fetch the ubuntu build from a release job.
	Matrix map[string]string `hcl:"matrix,optional"`
	// CallSite addresses a template call-site's slot on download.
	CallSite string `hcl:"call_site,optional"`
}

// OnRunArtifact is the handler for the 'artifact' step type.
func OnRunArtifact(ctx context.Context, sc *registry.StepContext, input any) (cty.Value, error) {
	in := input.(*Input)
	switch in.Action {
	case "upload":
		return handleUpload(ctx, sc, in)
	case "download":
		return handleDownload(ctx, sc, in)
	default:
		return cty.NilVal, fmt.Errorf("unknown artifact action %q", in.Action)
	}
}

func handleUpload(ctx context.Context, sc *registry.StepContext, in *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("slot", in.Slot)

	var files []artifact.File
	for _, pattern := range in.Paths {
		matches, err := filepath.Glob(filepath.Join(sc.Workdir, pattern))
		if err != nil {
			return cty.NilVal, fmt.Errorf("bad path pattern %q: %w", pattern, err)
		}
		for _, match := range matches {
			data, err := os.ReadFile(match)
			if err != nil {
				return cty.NilVal, fmt.Errorf("read %q: %w", match, err)
			}
			rel, err := filepath.Rel(sc.Workdir, match)
			if err != nil {
				rel = filepath.Base(match)
			}
			files = append(files, artifact.File{Name: filepath.ToSlash(rel), Data: data})
		}
	}

	if len(files) == 0 {
		switch in.IfNoFilesFound {
		case "ignore":
			return uploadResult(0), nil
		case "warn":
			logger.Warn("No files matched for upload", "paths", strings.Join(in.Paths, ", "))
			return uploadResult(0), nil
		default:
			return cty.NilVal, fmt.Errorf("no files matched for slot %q: %s", in.Slot, strings.Join(in.Paths, ", "))
		}
	}

	if err := sc.Artifacts.Put(ctx, sc.ArtifactKey(in.Slot), files); err != nil {
		return cty.NilVal, fmt.Errorf("upload to slot %q: %w", in.Slot, err)
	}
	logger.Info("Uploaded artifacts", "files", len(files))
	return uploadResult(len(files)), nil
}

func handleDownload(ctx context.Context, sc *registry.StepContext, in *Input) (cty.Value, error) {
	logger := ctxlog.FromContext(ctx).With("slot", in.Slot)

	key := sc.ArtifactKey(in.Slot)
	if in.Matrix != nil {
		key.Matrix = matrixKey(in.Matrix)
	}
	if in.CallSite != "" {
		key.CallSite = in.CallSite
	}

	files, err := sc.Artifacts.Get(ctx, key)
	if err != nil {
		return cty.NilVal, fmt.Errorf("download slot %q: %w", in.Slot, err)
	}

	dest := sc.Workdir
	if in.Dest != "" {
		dest = filepath.Join(sc.Workdir, in.Dest)
	}
	for _, f := range files {
		path := filepath.Join(dest, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return cty.NilVal, err
		}
		if err := os.WriteFile(path, f.Data, 0o755); err != nil {
			return cty.NilVal, err
		}
	}
	logger.Info("Downloaded artifacts", "files", len(files))

	return cty.ObjectVal(map[string]cty.Value{
		"count": cty.NumberIntVal(int64(len(files))),
		"dest":  cty.StringVal(dest),
	}), nil
}

func uploadResult(count int) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"count": cty.NumberIntVal(int64(count)),
	})
}

func matrixKey(matrix map[string]string) string {
	pairs := make([]string, 0, len(matrix))
	for axis, value := range matrix {
		pairs = append(pairs, axis+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("artifact", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunArtifact,
	})
}
