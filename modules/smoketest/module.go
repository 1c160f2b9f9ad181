// Package smoketest exercises a built binary against the live external
// API. The outcome is an ordinary step result: a failed smoke test fails
// its job instance like any other step.
package smoketest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"resty.dev/v3"

	"github.com/zclconf/go-cty/cty"

	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the 'arguments' HCL block.
type Input struct {
	// Slot names the artifact slot holding the binary under test.
	Slot string `hcl:"slot"`
	// Binary selects the file inside the slot; defaults to the slot's
	// single file.
	Binary string `hcl:"binary,optional"`
	// SpaceDirectory is passed to the binary as its content root.
	SpaceDirectory string `hcl:"space_directory"`
	// Host overrides the CONFLUENCE_HOST variable.
	Host string `hcl:"host,optional"`
}

// Secret names the smoke test requires in the job's scope.
const (
	apiUserSecret  = "API_USER"
	apiTokenSecret = "API_TOKEN"
)

// OnRunSmokeTest is the handler for the 'smoke_test' step type.
func OnRunSmokeTest(ctx context.Context, sc *registry.StepContext, input any) (cty.Value, error) {
	in := input.(*Input)
	logger := ctxlog.FromContext(ctx).With("slot", in.Slot)

	host := in.Host
	if host == "" {
		host = sc.Env["CONFLUENCE_HOST"]
	}
	if host == "" {
		return cty.NilVal, fmt.Errorf("no host: set the host argument or the CONFLUENCE_HOST variable")
	}
	user, ok := sc.Env[apiUserSecret]
	if !ok {
		return cty.NilVal, fmt.Errorf("smoke test requires the %s secret in the job's scope", apiUserSecret)
	}
	token, ok := sc.Env[apiTokenSecret]
	if !ok {
		return cty.NilVal, fmt.Errorf("smoke test requires the %s secret in the job's scope", apiTokenSecret)
	}

	if err := preflight(ctx, host, user, token); err != nil {
		return cty.NilVal, err
	}
	logger.Info("API preflight passed", "host", host)

	binary, err := materializeBinary(ctx, sc, in)
	if err != nil {
		return cty.NilVal, err
	}

	cmd := exec.CommandContext(ctx, binary, "--space", in.SpaceDirectory)
	cmd.Dir = sc.Workdir
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + os.Getenv("HOME"),
		"CONFLUENCE_HOST=" + host,
		apiUserSecret + "=" + user,
		apiTokenSecret + "=" + token,
	}
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	if err := cmd.Run(); err != nil {
		return cty.NilVal, fmt.Errorf("smoke test run failed: %w: %s", err, strings.TrimSpace(output.String()))
	}
	logger.Info("Smoke test passed", "binary", filepath.Base(binary))

	return cty.ObjectVal(map[string]cty.Value{
		"passed": cty.BoolVal(true),
	}), nil
}

// preflight checks that the API is reachable and the credentials are
// accepted before spending time on the real run.
func preflight(ctx context.Context, host, user, token string) error {
	client := resty.New().SetBaseURL(host).SetBasicAuth(user, token)
	defer client.Close()

	resp, err := client.R().SetContext(ctx).Get("/wiki/rest/api/space")
	if err != nil {
		return fmt.Errorf("API preflight: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("API preflight: %s", resp.Status())
	}
	return nil
}

// materializeBinary writes the artifact under test into the workdir and
// makes it executable.
func materializeBinary(ctx context.Context, sc *registry.StepContext, in *Input) (string, error) {
	files, err := sc.Artifacts.Get(ctx, sc.ArtifactKey(in.Slot))
	if err != nil {
		return "", fmt.Errorf("fetch binary from slot %q: %w", in.Slot, err)
	}

	want := in.Binary
	if want == "" {
		if len(files) != 1 {
			return "", fmt.Errorf("slot %q holds %d files, set the binary argument", in.Slot, len(files))
		}
		want = files[0].Name
	}

	for _, f := range files {
		if f.Name != want {
			continue
		}
		path := filepath.Join(sc.Workdir, filepath.Base(f.Name))
		if err := os.WriteFile(path, f.Data, 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	return "", fmt.Errorf("slot %q has no file named %q", in.Slot, want)
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register("smoke_test", &registry.Handler{
		NewInput: func() any { return new(Input) },
		Fn:       OnRunSmokeTest,
	})
}
