// Package exec runs shell commands inside a job instance's working
// directory with the instance's scoped environment.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	osexec "os/exec"
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
	Command string `hcl:"command"`
	Shell   string `hcl:"shell,optional"`
}

// OnRunExec executes the command through a shell. The child process sees
// only the step context's environment plus PATH and HOME from the daemon,
// so a job observes exactly the secrets it declared.
func OnRunExec(ctx context.Context, sc *registry.StepContext, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx)

	shell := in.Shell
	if shell == "" {
		shell = "sh"
	}

	cmd := osexec.CommandContext(ctx, shell, "-c", in.Command)
	cmd.Dir = sc.Workdir
	cmd.Env = childEnv(sc.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running command", "shell", shell, "command", in.Command)
	err := cmd.Run()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg != "" {
			return cty.NilVal, fmt.Errorf("command failed: %w: %s", err, msg)
		}
		return cty.NilVal, fmt.Errorf("command failed: %w", err)
	}

	return cty.ObjectVal(map[string]cty.Value{
		"stdout": cty.StringVal(strings.TrimSpace(stdout.String())),
	}), nil
}

func childEnv(env map[string]string) []string {
	out := []string{"PATH=" + os.Getenv("PATH"), "HOME=" + os.Getenv("HOME")}
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("exec", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunExec,
	})
}
