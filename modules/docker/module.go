// Package docker builds the project's container image and optionally
// pushes it to a registry.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	Image string `hcl:"image"`
	Tag   string `hcl:"tag,optional"`
	// Dockerfile is relative to the workdir; defaults to "Dockerfile".
	Dockerfile string `hcl:"dockerfile,optional"`
	// Push gates the registry side effect. A push requires the
	// REGISTRY_TOKEN secret in the job's scope.
	Push bool `hcl:"push,optional"`
}

// registryTokenSecret must be declared by any job that pushes.
const registryTokenSecret = "REGISTRY_TOKEN"

// OnRunDocker is the handler for the 'docker' step type.
func OnRunDocker(ctx context.Context, sc *registry.StepContext, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx).With("image", in.Image)

	tag := in.Tag
	if tag == "" {
		tag = sc.Run.ShortRef()
	}
	ref := in.Image + ":" + tag

	dockerfile := in.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	if in.Push {
		// Checked before any work so a misconfigured push job fails fast.
		if _, ok := sc.Env[registryTokenSecret]; !ok {
			return cty.NilVal, fmt.Errorf("push requires the %s secret in the job's scope", registryTokenSecret)
		}
	}

	if err := dockerCmd(ctx, sc, "build", "-f", dockerfile, "-t", ref, "."); err != nil {
		return cty.NilVal, fmt.Errorf("build %s: %w", ref, err)
	}
	logger.Info("Image built", "ref", ref)

	if in.Push {
		if err := dockerCmd(ctx, sc, "push", ref); err != nil {
			return cty.NilVal, fmt.Errorf("push %s: %w", ref, err)
		}
		logger.Info("Image pushed", "ref", ref)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"ref":    cty.StringVal(ref),
		"pushed": cty.BoolVal(in.Push),
	}), nil
}

func dockerCmd(ctx context.Context, sc *registry.StepContext, args ...string) error {
	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Dir = sc.Workdir
	env := []string{"PATH=" + os.Getenv("PATH"), "HOME=" + os.Getenv("HOME")}
	keys := make([]string, 0, len(sc.Env))
	for k := range sc.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+sc.Env[k])
	}
	cmd.Env = env

	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("docker", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunDocker,
	})
}
